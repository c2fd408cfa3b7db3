package model

// Problem is a locally available task statement.
type Problem struct {
	Name    string
	Content []byte
	Limits  ProblemLimits
}

// ProblemLimits mirrors the optional config.cfg next to a problem statement.
type ProblemLimits struct {
	TestCases     int
	TimeLimitSec  float64
	MemoryLimitMB int
}
