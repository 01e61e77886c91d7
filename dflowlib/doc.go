// Package dflowlib is a small library of ready-made dspatch.Component
// constructors, the int-valued counterpart to the teacher's hwlib package
// of boolean logic gates: Input/Output sources and sinks, PassThrough and
// Counter for wiring and stress tests, and Inc/Adder for exercising the
// feedback-edge and fan-out paths end to end.
package dflowlib
