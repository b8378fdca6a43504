package codegen

import (
	"github.com/wippyai/wasmgen/oracle"
	"github.com/wippyai/wasmgen/smith"
	"github.com/wippyai/wasmgen/wasm"
)

// maxBlockDepth bounds structured nesting within a body.
const maxBlockDepth = 16

// Context is the state of the body being built.
type Context struct {
	Module *smith.Module
	Func   *wasm.FuncType
	// Locals holds parameters followed by declared locals.
	Locals []wasm.ValType
	Body   []wasm.Instruction
	// Depth is the number of open blocks.
	Depth int
	// NoTraps excludes actions that may trap at run time.
	NoTraps bool
}

func newContext(ctx *smith.BodyContext) *Context {
	locals := make([]wasm.ValType, 0, len(ctx.Func.Params)+len(ctx.Locals))
	locals = append(locals, ctx.Func.Params...)
	locals = append(locals, ctx.Locals...)
	return &Context{
		Module:  ctx.Module,
		Func:    ctx.Func,
		Locals:  locals,
		NoTraps: ctx.Module.Config().DisallowTraps,
	}
}

// Emit appends instructions to the body.
func (c *Context) Emit(instrs ...wasm.Instruction) {
	c.Body = append(c.Body, instrs...)
}

// CanProduce reports whether Produce can push a value of type t.
func (c *Context) CanProduce(t wasm.ValType) bool {
	if t.IsNumeric() || t.Ref.Nullable {
		return true
	}
	for _, l := range c.Locals {
		if c.Module.IsSubType(l, t) {
			return true
		}
	}
	for _, g := range c.Module.Globals() {
		if c.Module.IsSubType(g.Val, t) {
			return true
		}
	}
	return false
}

// Produce emits instructions pushing one value whose type is a subtype of t.
// Callers check CanProduce first.
func (c *Context) Produce(u *oracle.Unstructured, t wasm.ValType) error {
	var sources []wasm.Instruction
	for i, l := range c.Locals {
		if c.Module.IsSubType(l, t) {
			sources = append(sources, wasm.Index(wasm.OpLocalGet, uint32(i)))
		}
	}
	for i, g := range c.Module.Globals() {
		if c.Module.IsSubType(g.Val, t) {
			sources = append(sources, wasm.GlobalGet(uint32(i)))
		}
	}
	if t.IsNumeric() || t.Ref.Nullable {
		// Constants are as likely as all the variables together.
		if len(sources) == 0 || u.Bool() {
			in, err := c.Module.ArbitraryConstInstruction(u, t)
			if err != nil {
				return err
			}
			c.Emit(in)
			return nil
		}
	}
	in, err := oracle.Choose(u, sources)
	if err != nil {
		return err
	}
	c.Emit(in)
	return nil
}

// producible reports whether every type in ts can be produced.
func (c *Context) producible(ts []wasm.ValType) bool {
	for _, t := range ts {
		if !c.CanProduce(t) {
			return false
		}
	}
	return true
}
