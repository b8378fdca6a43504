// Package codegen synthesizes valid function bodies for generated modules.
//
// A Builder keeps a registry of actions. Each step it collects the actions
// eligible in the current context and lets the decision stream pick one.
// Actions are stack neutral: every action leaves the operand stack as it
// found it, so a body is valid as long as each action is valid on its own
// and the function results are produced at the end.
//
// Action categories:
//   - Control: block, loop and if with empty block types, br_if to the
//     innermost label
//   - Variables: local.set, local.tee and global.set of producible values
//   - Numeric: constants and i32/i64 arithmetic, dropped afterwards
//   - Calls: call of any function whose parameters can be produced
//
// Values are produced from locals, globals or constants of a subtype of the
// wanted type. Constants come from the module's interesting value tables.
package codegen
