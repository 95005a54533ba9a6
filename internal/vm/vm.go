// Package vm wires the gas-metered WASM execution contract described in
// §1 and §6: `execute(code, method, args, ctx) -> bytes`, with gas
// accounting internal to the VM. The bytecode interpreter itself (wasmer)
// is an external collaborator; this package only owns the host/guest
// wiring the ContractCall transaction needs.
package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/hazechain/haze/internal/chainerr"
	"github.com/hazechain/haze/internal/chaintypes"
)

// ExecContext carries the caller/contract identity and gas budget for one
// ContractCall.
type ExecContext struct {
	Caller   chaintypes.Address
	Contract chaintypes.Address
	GasLimit uint64
}

// VM is the collaborator interface the state manager depends on.
type VM interface {
	Execute(ctx context.Context, code []byte, method string, args []byte, execCtx ExecContext) ([]byte, error)
}

var ErrGasExhausted = errors.New("vm: gas exhausted")

// WasmerVM runs contract bytecode under wasmer-go with a host-side gas
// meter, following the engine/store/instance wiring in the teacher's
// virtual_machine.go.
type WasmerVM struct {
	engine *wasmer.Engine
}

func NewWasmerVM() *WasmerVM {
	return &WasmerVM{engine: wasmer.NewEngine()}
}

// Execute instantiates code, exposes a `consume_gas(amount) -> remaining`
// host import the guest is expected to call as it runs, and invokes the
// exported function named method with args written to guest memory using
// the alloc/dealloc export convention. It returns the bytes written back
// by the guest, or a VM error on instantiation/gas failure.
func (w *WasmerVM) Execute(ctx context.Context, code []byte, method string, args []byte, execCtx ExecContext) ([]byte, error) {
	store := wasmer.NewStore(w.engine)
	module, err := wasmer.NewModule(store, code)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindVM, "compile module", err)
	}

	gasRemaining := execCtx.GasLimit
	gasExhausted := false

	consumeGas := wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I64), wasmer.NewValueTypes(wasmer.I64)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			amount := uint64(args[0].I64())
			if amount > gasRemaining {
				gasExhausted = true
				return nil, ErrGasExhausted
			}
			gasRemaining -= amount
			return []wasmer.Value{wasmer.NewI64(int64(gasRemaining))}, nil
		},
	)

	importObject := wasmer.NewImportObject()
	importObject.Register("env", map[string]wasmer.IntoExtern{
		"consume_gas": consumeGas,
	})

	instance, err := wasmer.NewInstance(module, importObject)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindVM, "instantiate module", err)
	}
	defer instance.Close()

	fn, err := instance.Exports.GetFunction(method)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindVM, fmt.Sprintf("export %q not found", method), err)
	}

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindVM, "guest has no exported memory", err)
	}

	ptr, dealloc, err := writeGuestBytes(instance, mem, args)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindVM, "write args to guest memory", err)
	}

	result, err := fn(ptr, len(args))
	if gasExhausted {
		return nil, chainerr.Wrap(chainerr.KindVM, "gas exhausted", ErrGasExhausted)
	}
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindVM, "call failed", err)
	}
	if dealloc != nil {
		_, _ = dealloc(ptr, len(args))
	}

	return readGuestResult(mem, result)
}

func writeGuestBytes(instance *wasmer.Instance, mem *wasmer.Memory, data []byte) (int32, func(...interface{}) (interface{}, error), error) {
	alloc, err := instance.Exports.GetFunction("alloc")
	if err != nil {
		return 0, nil, fmt.Errorf("guest missing alloc export: %w", err)
	}
	raw, err := alloc(len(data))
	if err != nil {
		return 0, nil, err
	}
	ptr, ok := raw.(int32)
	if !ok {
		return 0, nil, fmt.Errorf("alloc returned non-i32 pointer")
	}
	view := mem.Data()
	if int(ptr)+len(data) > len(view) {
		return 0, nil, fmt.Errorf("guest memory too small for args")
	}
	copy(view[ptr:], data)

	dealloc, _ := instance.Exports.GetFunction("dealloc")
	var deallocFn func(...interface{}) (interface{}, error)
	if dealloc != nil {
		deallocFn = dealloc
	}
	return ptr, deallocFn, nil
}

// readGuestResult interprets a (ptr, len) pair packed into a single i64
// return value, the common convention used by the teacher's host shims.
func readGuestResult(mem *wasmer.Memory, raw interface{}) ([]byte, error) {
	packed, ok := raw.(int64)
	if !ok {
		return nil, fmt.Errorf("vm: unexpected return type %T", raw)
	}
	ptr := uint32(uint64(packed) >> 32)
	length := uint32(uint64(packed) & 0xffffffff)
	view := mem.Data()
	if int(ptr)+int(length) > len(view) {
		return nil, fmt.Errorf("vm: result out of bounds")
	}
	out := make([]byte, length)
	copy(out, view[ptr:ptr+length])
	return out, nil
}
