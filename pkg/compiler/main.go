// Package compiler provides a lexer, parser, semantic checker and code
// generator for a small Rust-like language that targets x86-64 assembly.
//
// Pipeline: source → Lex → Parse → Resolve → Check → Generate → AT&T assembly text
package compiler
