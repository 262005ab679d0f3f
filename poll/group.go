package poll

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/graintech/modbus"
)

// maxGroupSpan caps how far apart two registers' addresses can be and
// still be coalesced into one read, so a handful of scattered tags don't
// force a read spanning the whole address space.
const maxGroupSpan = 125

// Group is a run of DeviceRegisters on the same unit, function code and
// address space that a single Modbus request can satisfy in one round
// trip: contiguous or close enough together that reading the gap is
// cheaper than a second request.
type Group struct {
	UnitID    uint8
	Function  modbus.FunctionCode
	Address   uint16
	Quantity  uint16
	Registers []DeviceRegister
}

// GroupByContinuity sorts registers by (unit, function, address) and
// coalesces runs that are contiguous or within maxGroupSpan words of each
// other into Groups, batching a device's tags into as few round trips as
// possible before polling it.
func GroupByContinuity(registers []DeviceRegister) []Group {
	byUnit := make(map[uint8][]DeviceRegister)
	for _, r := range registers {
		byUnit[r.UnitID] = append(byUnit[r.UnitID], r)
	}

	units := make([]uint8, 0, len(byUnit))
	for u := range byUnit {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })

	var groups []Group
	for _, u := range units {
		regs := byUnit[u]
		sort.Slice(regs, func(i, j int) bool {
			if regs[i].Function != regs[j].Function {
				return regs[i].Function < regs[j].Function
			}
			return regs[i].Address < regs[j].Address
		})

		var cur *Group
		for _, r := range regs {
			end := r.Address + r.Quantity
			if cur != nil && cur.Function == r.Function && r.Address <= cur.Address+cur.Quantity+maxGroupSpan {
				if end > cur.Address+cur.Quantity {
					cur.Quantity = end - cur.Address
				}
				cur.Registers = append(cur.Registers, r)
				continue
			}
			groups = append(groups, Group{UnitID: u, Function: r.Function, Address: r.Address, Quantity: r.Quantity, Registers: []DeviceRegister{r}})
			cur = &groups[len(groups)-1]
		}
	}
	return groups
}

// Read performs the group's single request against client and slices the
// response back out per-register.
func (g Group) Read(ctx context.Context, client *modbus.Client) ([]DeviceRegister, error) {
	var words []uint16
	var err error
	switch g.Function {
	case modbus.FuncCodeReadHoldingRegisters:
		words, err = client.ReadHoldingRegisters(g.Address, g.Quantity)
	case modbus.FuncCodeReadInputRegisters:
		words, err = client.ReadInputRegisters(g.Address, g.Quantity)
	default:
		return nil, &unsupportedFunctionError{g.Function}
	}
	if err != nil {
		return nil, err
	}

	raw := make([]byte, len(words)*2)
	for i, w := range words {
		raw[2*i] = byte(w >> 8)
		raw[2*i+1] = byte(w)
	}

	out := make([]DeviceRegister, len(g.Registers))
	for i, r := range g.Registers {
		off := (r.Address - g.Address) * 2
		n := r.Quantity * 2
		r.Value = raw[off : off+n]
		r.Status = "ok"
		out[i] = r
	}
	return out, nil
}

type unsupportedFunctionError struct{ fc modbus.FunctionCode }

func (e *unsupportedFunctionError) Error() string {
	return fmt.Sprintf("modbus/poll: grouped read does not support function 0x%02X", uint8(e.fc))
}

// ReadGroupsConcurrently reads every group in its own goroutine, favoring
// TCP-style targets where multiple in-flight requests pipeline well.
func ReadGroupsConcurrently(ctx context.Context, client *modbus.Client, groups []Group) ([]DeviceRegister, []error) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []DeviceRegister
		errs    []error
	)
	wg.Add(len(groups))
	for _, g := range groups {
		go func(g Group) {
			defer wg.Done()
			regs, err := g.Read(ctx, client)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			results = append(results, regs...)
		}(g)
	}
	wg.Wait()
	return results, errs
}

// ReadGroupsSequential reads groups one at a time, avoiding overlapping
// requests on a half-duplex serial line.
func ReadGroupsSequential(ctx context.Context, client *modbus.Client, groups []Group) ([]DeviceRegister, []error) {
	var results []DeviceRegister
	var errs []error
	for _, g := range groups {
		regs, err := g.Read(ctx, client)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, regs...)
	}
	return results, errs
}
