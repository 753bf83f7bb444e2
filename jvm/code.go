package jvm

// Op identifies a symbolic instruction kind. The set is just large enough to
// carry references through the shrinker and to express the dispatch bodies it
// synthesizes; it is not a complete instruction set.
type Op int

const (
	OpNop Op = iota
	OpConstInt
	OpGetField
	OpPutField
	OpGetStatic
	OpPutStatic
	OpInvokeDirect
	OpInvokeVirtual
	OpInvokeStatic
	OpInvokeSuper
	OpInvokeInterface
	OpInstanceOf
	OpCheckCast
	OpNewInstance
	OpSwitch
	OpGoto
	OpLabel
	OpReturn
	OpThrow
)

var opNames = map[Op]string{
	OpNop:             `nop`,
	OpConstInt:        `const-int`,
	OpGetField:        `get-field`,
	OpPutField:        `put-field`,
	OpGetStatic:       `get-static`,
	OpPutStatic:       `put-static`,
	OpInvokeDirect:    `invoke-direct`,
	OpInvokeVirtual:   `invoke-virtual`,
	OpInvokeStatic:    `invoke-static`,
	OpInvokeSuper:     `invoke-super`,
	OpInvokeInterface: `invoke-interface`,
	OpInstanceOf:      `instance-of`,
	OpCheckCast:       `check-cast`,
	OpNewInstance:     `new-instance`,
	OpSwitch:          `switch`,
	OpGoto:            `goto`,
	OpLabel:           `label`,
	OpReturn:          `return`,
	OpThrow:           `throw`,
}

func (op Op) String() string { return opNames[op] }

// Instruction is one symbolic instruction. Only the operands relevant to the
// op are populated: Type for type-bearing ops, Field/Method for member
// accesses, Value for constants, Target for gotos and labels, Cases for
// switches.
type Instruction struct {
	Op     Op
	Type   TypeRef
	Field  FieldRef
	Method MethodRef
	Value  int
	Target int

	// Cases maps a switch key to the label id control transfers to.
	// Keys are visited in ascending order when the body is printed or
	// compared, so identical inputs produce identical output.
	Cases map[int]int
}

// Code is a method body: a flat instruction list. Labels are instruction-
// local: a `Label` instruction declares a target id and `Goto`/`Switch`
// transfer to it.
type Code struct {
	Instrs []Instruction
}

// Append adds instructions at the end of the body.
func (c *Code) Append(instrs ...Instruction) {
	c.Instrs = append(c.Instrs, instrs...)
}

// Clone returns a deep copy of the body.
func (c *Code) Clone() *Code {
	if c == nil {
		return nil
	}
	clone := &Code{Instrs: make([]Instruction, len(c.Instrs))}
	copy(clone.Instrs, c.Instrs)
	for i, instr := range c.Instrs {
		if instr.Cases != nil {
			cases := make(map[int]int, len(instr.Cases))
			for k, v := range instr.Cases {
				cases[k] = v
			}
			clone.Instrs[i].Cases = cases
		}
	}
	return clone
}

// MaxLabel returns the largest label id declared or targeted in the body,
// or -1 if the body uses no labels.
func (c *Code) MaxLabel() int {
	max := -1
	for _, instr := range c.Instrs {
		switch instr.Op {
		case OpLabel, OpGoto:
			if instr.Target > max {
				max = instr.Target
			}
		case OpSwitch:
			for _, target := range instr.Cases {
				if target > max {
					max = target
				}
			}
		}
	}
	return max
}

// RefRewriter rewrites the three reference kinds appearing in code,
// annotations and member declarations. All three must be total functions;
// returning the input unchanged means "no rewrite".
type RefRewriter interface {
	RewriteType(TypeRef) TypeRef
	RewriteField(FieldRef) FieldRef
	RewriteMethod(MethodRef) MethodRef
}

// RewriteRefs rewrites every reference in the body in place.
func (c *Code) RewriteRefs(rw RefRewriter) {
	if c == nil {
		return
	}
	for i := range c.Instrs {
		instr := &c.Instrs[i]
		switch instr.Op {
		case OpGetField, OpPutField, OpGetStatic, OpPutStatic:
			instr.Field = rw.RewriteField(instr.Field)
		case OpInvokeDirect, OpInvokeVirtual, OpInvokeStatic, OpInvokeSuper, OpInvokeInterface:
			instr.Method = rw.RewriteMethod(instr.Method)
		case OpInstanceOf, OpCheckCast, OpNewInstance:
			instr.Type = rw.RewriteType(instr.Type)
		}
	}
}
