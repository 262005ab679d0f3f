package server

import "github.com/graintech/modbus"

// Identity is the optional device-identification block consumed by FC 17
// (Report Slave ID) and FC 43/14 (Read Device Identification).
type Identity struct {
	VendorName          string
	ProductCode         string
	MajorMinorRevision  string
	VendorURL           string
	ProductName         string
	ModelName           string
	UserApplicationName string

	// RunIndicatorStatus is reported verbatim by FC 17 (0xFF = running).
	RunIndicatorStatus byte
}

// basic Read Device Identification object ids, per the Modbus spec's
// "basic device identification" category (conformity level 0x01).
const (
	objectVendorName         = 0x00
	objectProductCode        = 0x01
	objectMajorMinorRevision = 0x02
	objectVendorURL          = 0x03
	objectProductName        = 0x04
	objectModelName          = 0x05
	objectUserApplicationName = 0x06
)

func (id *Identity) reportSlaveIDResponse() modbus.Payload {
	return modbus.ReportSlaveIDResponse{
		ID:        []byte(id.ProductCode),
		RunStatus: id.RunIndicatorStatus == 0xFF,
	}
}

// objects returns the basic-category object list in ascending id order.
func (id *Identity) objects() []modbus.DeviceIDObject {
	return []modbus.DeviceIDObject{
		{ID: objectVendorName, Value: []byte(id.VendorName)},
		{ID: objectProductCode, Value: []byte(id.ProductCode)},
		{ID: objectMajorMinorRevision, Value: []byte(id.MajorMinorRevision)},
		{ID: objectVendorURL, Value: []byte(id.VendorURL)},
		{ID: objectProductName, Value: []byte(id.ProductName)},
		{ID: objectModelName, Value: []byte(id.ModelName)},
		{ID: objectUserApplicationName, Value: []byte(id.UserApplicationName)},
	}
}

// readDeviceIdentificationResponse serves one Read Device Identification
// request. This implementation always answers the "basic" category (the
// seven well-known object ids above) regardless of readDeviceIDCode,
// starting at objectID, and pages at most 4 objects per response the way
// most basic-conformity devices do.
func (id *Identity) readDeviceIdentificationResponse(readDeviceIDCode, objectID byte) (modbus.Payload, error) {
	all := id.objects()
	start := -1
	for i, obj := range all {
		if obj.ID == objectID {
			start = i
			break
		}
	}
	if start == -1 {
		return nil, modbus.NewExceptionError(modbus.ExcIllegalDataAddress)
	}

	const pageSize = 4
	end := start + pageSize
	moreFollows := end < len(all)
	if end > len(all) {
		end = len(all)
	}
	page := all[start:end]

	resp := modbus.ReadDeviceIdentificationResponse{
		ReadDeviceIDCode: readDeviceIDCode,
		Conformity:       0x01,
		MoreFollows:      moreFollows,
		Objects:          page,
	}
	if moreFollows {
		resp.NextObjectID = all[end].ID
	}
	return resp, nil
}
