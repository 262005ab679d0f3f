package server

import (
	"testing"

	"github.com/graintech/modbus"
)

func testIdentity() *Identity {
	return &Identity{
		VendorName:          "Acme",
		ProductCode:         "MB-100",
		MajorMinorRevision:  "1.0",
		VendorURL:           "https://acme.example",
		ProductName:         "Acme Gateway",
		ModelName:           "100",
		UserApplicationName: "gatewayd",
		RunIndicatorStatus:  0xFF,
	}
}

func TestIdentityReportSlaveIDResponse(t *testing.T) {
	id := testIdentity()
	resp := id.reportSlaveIDResponse()
	body, ok := resp.(modbus.ReportSlaveIDResponse)
	if !ok {
		t.Fatalf("reportSlaveIDResponse returned %T, want ReportSlaveIDResponse", resp)
	}
	if string(body.ID) != "MB-100" {
		t.Fatalf("ID = %q, want %q", body.ID, "MB-100")
	}
	if !body.RunStatus {
		t.Fatalf("RunStatus = false, want true for RunIndicatorStatus 0xFF")
	}
}

func TestIdentityReadDeviceIdentificationFirstPage(t *testing.T) {
	id := testIdentity()
	resp, err := id.readDeviceIdentificationResponse(0x01, objectVendorName)
	if err != nil {
		t.Fatalf("readDeviceIdentificationResponse: %v", err)
	}
	body, ok := resp.(modbus.ReadDeviceIdentificationResponse)
	if !ok {
		t.Fatalf("response is %T, want ReadDeviceIdentificationResponse", resp)
	}
	if len(body.Objects) != 4 {
		t.Fatalf("len(Objects) = %d, want 4 (page size)", len(body.Objects))
	}
	if !body.MoreFollows {
		t.Fatalf("MoreFollows = false, want true with 7 objects total")
	}
	if body.NextObjectID != objectProductName {
		t.Fatalf("NextObjectID = %d, want %d", body.NextObjectID, objectProductName)
	}
}

func TestIdentityReadDeviceIdentificationLastPage(t *testing.T) {
	id := testIdentity()
	resp, err := id.readDeviceIdentificationResponse(0x01, objectProductName)
	if err != nil {
		t.Fatalf("readDeviceIdentificationResponse: %v", err)
	}
	body := resp.(modbus.ReadDeviceIdentificationResponse)
	if body.MoreFollows {
		t.Fatalf("MoreFollows = true, want false on the last page")
	}
	if len(body.Objects) != 3 {
		t.Fatalf("len(Objects) = %d, want 3 remaining objects", len(body.Objects))
	}
}

func TestIdentityReadDeviceIdentificationUnknownObjectID(t *testing.T) {
	id := testIdentity()
	if _, err := id.readDeviceIdentificationResponse(0x01, 0x7F); err == nil {
		t.Fatalf("expected an error for an unknown starting object id")
	}
}
