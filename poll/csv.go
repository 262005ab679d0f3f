package poll

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/graintech/modbus"
)

// csvHeader lists the columns LoadCSV understands; tag, slaveId, function,
// address and dataType are required, the rest default as noted.
var csvHeader = []string{
	"tag", "alias", "slaveId", "function", "address", "quantity",
	"dataType", "wordOrder", "bitMask", "weight",
}

var wordOrderByName = map[string]modbus.WordOrder{
	"":      modbus.BigEndian,
	"ABCD":  modbus.BigEndian,
	"DCBA":  modbus.LittleEndian,
	"BADC":  modbus.MixedBigEndian,
	"CDAB":  modbus.MixedLittleEndian,
	"big":    modbus.BigEndian,
	"little": modbus.LittleEndian,
}

var functionByCode = map[uint64]modbus.FunctionCode{
	1:  modbus.FuncCodeReadCoils,
	2:  modbus.FuncCodeReadDiscreteInputs,
	3:  modbus.FuncCodeReadHoldingRegisters,
	4:  modbus.FuncCodeReadInputRegisters,
}

// dataTypeWidth maps a DataType name to its register count, the same role
// a default register count plays for CSV rows that omit an
// explicit quantity.
var dataTypeWidth = map[string]uint16{
	"bool": 1, "uint8": 1, "int8": 1,
	"uint16": 1, "int16": 1,
	"uint32": 2, "int32": 2, "float32": 2,
	"uint64": 4, "int64": 4, "float64": 4,
}

// LoadCSV parses a register table from r into DeviceRegisters. The header
// row names columns; only tag, slaveId, function, address and dataType
// are required, the rest take the defaults documented on csvHeader.
func LoadCSV(r io.Reader) ([]DeviceRegister, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("modbus/poll: read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("modbus/poll: empty csv")
	}

	col := make(map[string]int)
	for i, h := range records[0] {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"tag", "slaveId", "function", "address", "dataType"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("modbus/poll: csv header missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var out []DeviceRegister
	for rowNum, row := range records[1:] {
		lineNo := rowNum + 2
		var r DeviceRegister

		r.Tag = field(row, "tag")
		if r.Tag == "" {
			return nil, fmt.Errorf("modbus/poll: csv row %d: tag is required", lineNo)
		}
		r.Alias = field(row, "alias")

		unitID, err := strconv.ParseUint(field(row, "slaveId"), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("modbus/poll: csv row %d: invalid slaveId: %w", lineNo, err)
		}
		r.UnitID = uint8(unitID)

		fcVal, err := strconv.ParseUint(field(row, "function"), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("modbus/poll: csv row %d: invalid function: %w", lineNo, err)
		}
		fc, ok := functionByCode[fcVal]
		if !ok {
			return nil, fmt.Errorf("modbus/poll: csv row %d: unsupported function code %d", lineNo, fcVal)
		}
		r.Function = fc

		addr, err := strconv.ParseUint(field(row, "address"), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("modbus/poll: csv row %d: invalid address: %w", lineNo, err)
		}
		r.Address = uint16(addr)

		r.DataType = field(row, "dataType")
		width, ok := dataTypeWidth[r.DataType]
		if !ok {
			return nil, fmt.Errorf("modbus/poll: csv row %d: unknown dataType %q", lineNo, r.DataType)
		}
		if qStr := field(row, "quantity"); qStr != "" {
			q, err := strconv.ParseUint(qStr, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("modbus/poll: csv row %d: invalid quantity: %w", lineNo, err)
			}
			r.Quantity = uint16(q)
		} else {
			r.Quantity = width
		}

		order, ok := wordOrderByName[field(row, "wordOrder")]
		if !ok {
			return nil, fmt.Errorf("modbus/poll: csv row %d: unknown wordOrder %q", lineNo, field(row, "wordOrder"))
		}
		r.WordOrder = order

		if bm := field(row, "bitMask"); bm != "" {
			base := 10
			if strings.HasPrefix(bm, "0x") || strings.HasPrefix(bm, "0X") {
				base = 0
			}
			mask, err := strconv.ParseUint(bm, base, 16)
			if err != nil {
				return nil, fmt.Errorf("modbus/poll: csv row %d: invalid bitMask: %w", lineNo, err)
			}
			r.BitMask = uint16(mask)
		} else {
			r.BitMask = 0x01
		}

		if w := field(row, "weight"); w != "" {
			weight, err := strconv.ParseFloat(w, 64)
			if err != nil {
				return nil, fmt.Errorf("modbus/poll: csv row %d: invalid weight: %w", lineNo, err)
			}
			r.Weight = weight
		} else {
			r.Weight = 1.0
		}

		out = append(out, r)
	}
	return out, nil
}

// WriteCSV serializes registers back to CSV in the LoadCSV format.
func WriteCSV(w io.Writer, registers []DeviceRegister) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("modbus/poll: write csv header: %w", err)
	}
	for _, r := range registers {
		record := []string{
			r.Tag,
			r.Alias,
			strconv.FormatUint(uint64(r.UnitID), 10),
			strconv.FormatUint(uint64(r.Function), 10),
			strconv.FormatUint(uint64(r.Address), 10),
			strconv.FormatUint(uint64(r.Quantity), 10),
			r.DataType,
			wordOrderName(r.WordOrder),
			fmt.Sprintf("0x%04X", r.BitMask),
			strconv.FormatFloat(r.Weight, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("modbus/poll: write csv row for %s: %w", r.Tag, err)
		}
	}
	return nil
}

func wordOrderName(o modbus.WordOrder) string {
	switch o {
	case modbus.BigEndian:
		return "ABCD"
	case modbus.LittleEndian:
		return "DCBA"
	case modbus.MixedBigEndian:
		return "BADC"
	case modbus.MixedLittleEndian:
		return "CDAB"
	default:
		return "ABCD"
	}
}
