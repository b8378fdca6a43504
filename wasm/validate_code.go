package wasm

import (
	"github.com/wippyai/wasmgen/errors"
)

// MaxLocals bounds the number of locals a single function may declare.
const MaxLocals = 50000

// unknownType is the polymorphic stack slot produced after unreachable code.
var unknownType = ValType{Kind: ValKind(0xff)}

// validateConstExpr checks that expr is constant and yields a subtype of want.
// Only globals below maxGlobal may be read.
func (v *validator) validateConstExpr(path []string, expr ConstExpr, want ValType, maxGlobal int) error {
	var stack []ValType
	pop := func(t ValType) error {
		if len(stack) == 0 {
			return invalid(path, "operand stack underflow")
		}
		got := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !ValTypeIsSubType(v, got, t) {
			return errors.TypeMismatch(errors.PhaseValidate, path, t.String(), got.String())
		}
		return nil
	}
	for _, in := range expr {
		switch in.Opcode {
		case OpI32Const:
			stack = append(stack, I32)
		case OpI64Const:
			stack = append(stack, I64)
		case OpF32Const:
			stack = append(stack, F32)
		case OpF64Const:
			stack = append(stack, F64)
		case OpPrefixSIMD:
			stack = append(stack, V128)
		case OpGlobalGet:
			idx := in.Imm.(uint32)
			if int(idx) >= maxGlobal {
				return outOfBounds(path, idx, maxGlobal)
			}
			g := v.globals[idx]
			if g.Mutable {
				return invalid(path, "constant expression reads mutable global %d", idx)
			}
			stack = append(stack, g.Val)
		case OpRefNull:
			h := in.Imm.(HeapType)
			if err := v.validateRef(path, RefType{Nullable: true, Heap: h}); err != nil {
				return err
			}
			stack = append(stack, Ref(RefType{Nullable: true, Heap: h}))
		case OpRefFunc:
			t, err := v.refFuncType(path, in.Imm.(uint32))
			if err != nil {
				return err
			}
			stack = append(stack, t)
		case OpI32Add, OpI32Sub, OpI32Mul, OpI64Add, OpI64Sub, OpI64Mul:
			t := I32
			if in.Opcode >= OpI64Add {
				t = I64
			}
			if err := pop(t); err != nil {
				return err
			}
			if err := pop(t); err != nil {
				return err
			}
			stack = append(stack, t)
		default:
			return invalid(path, "%s is not a constant instruction", in)
		}
	}
	if len(stack) != 1 {
		return invalid(path, "constant expression leaves %d values", len(stack))
	}
	return pop(want)
}

func (v *validator) refFuncType(path []string, idx uint32) (ValType, error) {
	typeIdx, ok := v.m.FuncTypeIndex(idx)
	if !ok {
		return ValType{}, outOfBounds(path, idx, int(v.numFuncs))
	}
	return Ref(RefType{Nullable: false, Heap: Concrete(typeIdx)}), nil
}

type ctrlFrame struct {
	results     []ValType
	height      int
	opcode      byte
	unreachable bool
	sawElse     bool
}

type bodyChecker struct {
	v      *validator
	path   []string
	locals []ValType
	stack  []ValType
	ctrl   []ctrlFrame
}

func (v *validator) validateCode() error {
	numImported := int(v.numFuncs) - len(v.m.Funcs)
	if len(v.m.Code) != len(v.m.Funcs) {
		return invalid([]string{"code"}, "%d bodies for %d functions", len(v.m.Code), len(v.m.Funcs))
	}
	for i := range v.m.Code {
		idx := numImported + i
		path := []string{"func", itoa(idx)}
		ft, err := v.funcType(path, v.m.Funcs[i])
		if err != nil {
			return err
		}
		if err := v.validateBody(path, ft, &v.m.Code[i]); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateBody(path []string, ft *FuncType, body *FuncBody) error {
	locals := append([]ValType(nil), ft.Params...)
	total := uint64(len(locals))
	for _, l := range body.Locals {
		total += uint64(l.Count)
		if total > MaxLocals {
			return invalid(path, "too many locals")
		}
		if err := v.validateValType(path, l.Type, v.numTypes); err != nil {
			return err
		}
		if !l.Type.IsDefaultable() {
			return invalid(path, "local of type %s is not defaultable", l.Type)
		}
		for j := uint32(0); j < l.Count; j++ {
			locals = append(locals, l.Type)
		}
	}
	instrs, err := body.Instructions()
	if err != nil {
		return errors.New(errors.PhaseValidate, errors.KindInvalidData).Path(path...).Detail("decode body").Cause(err).Build()
	}
	c := &bodyChecker{v: v, path: path, locals: locals}
	c.ctrl = []ctrlFrame{{opcode: OpBlock, results: ft.Results}}
	for _, in := range instrs {
		if len(c.ctrl) == 0 {
			return invalid(path, "instructions after the final end")
		}
		if err := c.step(in, ft); err != nil {
			return err
		}
	}
	if len(c.ctrl) != 1 {
		return invalid(path, "%d unclosed blocks", len(c.ctrl)-1)
	}
	return c.end()
}

func (c *bodyChecker) push(t ValType) {
	c.stack = append(c.stack, t)
}

func (c *bodyChecker) pop() (ValType, error) {
	f := &c.ctrl[len(c.ctrl)-1]
	if len(c.stack) == f.height {
		if f.unreachable {
			return unknownType, nil
		}
		return ValType{}, invalid(c.path, "operand stack underflow")
	}
	t := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return t, nil
}

func (c *bodyChecker) popExpect(want ValType) error {
	got, err := c.pop()
	if err != nil {
		return err
	}
	if got == unknownType || ValTypeIsSubType(c.v, got, want) {
		return nil
	}
	return errors.TypeMismatch(errors.PhaseValidate, c.path, want.String(), got.String())
}

func (c *bodyChecker) popAll(types []ValType) error {
	for i := len(types) - 1; i >= 0; i-- {
		if err := c.popExpect(types[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *bodyChecker) setUnreachable() {
	f := &c.ctrl[len(c.ctrl)-1]
	c.stack = c.stack[:f.height]
	f.unreachable = true
}

// end closes the innermost frame, checking its results.
func (c *bodyChecker) end() error {
	f := c.ctrl[len(c.ctrl)-1]
	if err := c.popAll(f.results); err != nil {
		return err
	}
	if len(c.stack) != f.height {
		return invalid(c.path, "%d extra values at end of block", len(c.stack)-f.height)
	}
	if f.opcode == OpIf && !f.sawElse && len(f.results) > 0 {
		return invalid(c.path, "if with results requires else")
	}
	c.ctrl = c.ctrl[:len(c.ctrl)-1]
	c.stack = append(c.stack, f.results...)
	return nil
}

func (c *bodyChecker) label(depth uint32) ([]ValType, error) {
	if int(depth) >= len(c.ctrl) {
		return nil, outOfBounds(c.path, depth, len(c.ctrl))
	}
	f := c.ctrl[len(c.ctrl)-1-int(depth)]
	if f.opcode == OpLoop {
		return nil, nil
	}
	return f.results, nil
}

func (c *bodyChecker) local(idx uint32) (ValType, error) {
	if int(idx) >= len(c.locals) {
		return ValType{}, outOfBounds(c.path, idx, len(c.locals))
	}
	return c.locals[idx], nil
}

func (c *bodyChecker) global(idx uint32) (GlobalType, error) {
	if int(idx) >= len(c.v.globals) {
		return GlobalType{}, outOfBounds(c.path, idx, len(c.v.globals))
	}
	return c.v.globals[idx], nil
}

func (c *bodyChecker) step(in Instruction, ft *FuncType) error {
	switch in.Opcode {
	case OpNop:
	case OpUnreachable:
		c.setUnreachable()

	case OpBlock, OpLoop, OpIf:
		if in.Opcode == OpIf {
			if err := c.popExpect(I32); err != nil {
				return err
			}
		}
		var results []ValType
		if imm, ok := in.Imm.(BlockImm); ok && imm.Result != nil {
			results = []ValType{*imm.Result}
		}
		c.ctrl = append(c.ctrl, ctrlFrame{opcode: in.Opcode, results: results, height: len(c.stack)})

	case OpElse:
		f := &c.ctrl[len(c.ctrl)-1]
		if f.opcode != OpIf || f.sawElse {
			return invalid(c.path, "else without matching if")
		}
		if err := c.popAll(f.results); err != nil {
			return err
		}
		if len(c.stack) != f.height {
			return invalid(c.path, "extra values before else")
		}
		f.sawElse = true
		f.unreachable = false

	case OpEnd:
		return c.end()

	case OpBr, OpBrIf:
		if in.Opcode == OpBrIf {
			if err := c.popExpect(I32); err != nil {
				return err
			}
		}
		types, err := c.label(in.Imm.(uint32))
		if err != nil {
			return err
		}
		if err := c.popAll(types); err != nil {
			return err
		}
		if in.Opcode == OpBr {
			c.setUnreachable()
		} else {
			c.stack = append(c.stack, types...)
		}

	case OpReturn:
		if err := c.popAll(ft.Results); err != nil {
			return err
		}
		c.setUnreachable()

	case OpCall:
		idx := in.Imm.(uint32)
		typeIdx, ok := c.v.m.FuncTypeIndex(idx)
		if !ok {
			return outOfBounds(c.path, idx, int(c.v.numFuncs))
		}
		callee, err := c.v.funcType(c.path, typeIdx)
		if err != nil {
			return err
		}
		if err := c.popAll(callee.Params); err != nil {
			return err
		}
		c.stack = append(c.stack, callee.Results...)

	case OpDrop:
		if _, err := c.pop(); err != nil {
			return err
		}

	case OpSelect:
		if err := c.popExpect(I32); err != nil {
			return err
		}
		a, err := c.pop()
		if err != nil {
			return err
		}
		b, err := c.pop()
		if err != nil {
			return err
		}
		switch {
		case a == unknownType:
			c.push(b)
		case b == unknownType || a == b:
			if !a.IsNumeric() {
				return invalid(c.path, "untyped select on reference type %s", a)
			}
			c.push(a)
		default:
			return errors.TypeMismatch(errors.PhaseValidate, c.path, a.String(), b.String())
		}

	case OpLocalGet, OpLocalSet, OpLocalTee:
		t, err := c.local(in.Imm.(uint32))
		if err != nil {
			return err
		}
		if in.Opcode != OpLocalGet {
			if err := c.popExpect(t); err != nil {
				return err
			}
		}
		if in.Opcode != OpLocalSet {
			c.push(t)
		}

	case OpGlobalGet:
		g, err := c.global(in.Imm.(uint32))
		if err != nil {
			return err
		}
		c.push(g.Val)

	case OpGlobalSet:
		g, err := c.global(in.Imm.(uint32))
		if err != nil {
			return err
		}
		if !g.Mutable {
			return invalid(c.path, "global.set of immutable global %d", in.Imm.(uint32))
		}
		return c.popExpect(g.Val)

	case OpI32Const:
		c.push(I32)
	case OpI64Const:
		c.push(I64)
	case OpF32Const:
		c.push(F32)
	case OpF64Const:
		c.push(F64)
	case OpPrefixSIMD:
		c.push(V128)

	case OpI32Eqz:
		if err := c.popExpect(I32); err != nil {
			return err
		}
		c.push(I32)
	case OpI64Eqz:
		if err := c.popExpect(I64); err != nil {
			return err
		}
		c.push(I32)

	case OpI32Add, OpI32Sub, OpI32Mul, OpI32And, OpI32Or, OpI32Xor:
		return c.binary(I32)
	case OpI64Add, OpI64Sub, OpI64Mul, OpI64And, OpI64Or, OpI64Xor:
		return c.binary(I64)

	case OpRefNull:
		h := in.Imm.(HeapType)
		rt := RefType{Nullable: true, Heap: h}
		if err := c.v.validateRef(c.path, rt); err != nil {
			return err
		}
		c.push(Ref(rt))

	case OpRefIsNull:
		t, err := c.pop()
		if err != nil {
			return err
		}
		if t != unknownType && t.Kind != ValRef {
			return errors.TypeMismatch(errors.PhaseValidate, c.path, "reference", t.String())
		}
		c.push(I32)

	case OpRefFunc:
		idx := in.Imm.(uint32)
		if !c.v.declared[idx] {
			return invalid(c.path, "ref.func of undeclared function %d", idx)
		}
		t, err := c.v.refFuncType(c.path, idx)
		if err != nil {
			return err
		}
		c.push(t)

	default:
		return errors.Unsupported(errors.PhaseValidate, in.String())
	}
	return nil
}

func (c *bodyChecker) binary(t ValType) error {
	if err := c.popExpect(t); err != nil {
		return err
	}
	if err := c.popExpect(t); err != nil {
		return err
	}
	c.push(t)
	return nil
}
