package config

// TokenBudget caps the character allowance of each context layer for
// one task type. Permanent context is never truncated; the other caps
// are enforced oldest-first by the context manager.
type TokenBudget struct {
	Permanent int
	Task      int
	Summary   int
	Total     int
}

// TokenBudgets maps task types to their context allowances. Unlisted
// task types fall back to the chat budget.
var TokenBudgets = map[TaskType]TokenBudget{
	TaskChat:                {Permanent: 100, Task: 200, Summary: 100, Total: 400},
	TaskCodeExplainSimple:   {Permanent: 100, Task: 1000, Summary: 200, Total: 1300},
	TaskCodeExplainComplex:  {Permanent: 100, Task: 2000, Summary: 400, Total: 2500},
	TaskCodeGeneration:      {Permanent: 100, Task: 1500, Summary: 300, Total: 1900},
	TaskCodeGenerationMulti: {Permanent: 100, Task: 3000, Summary: 500, Total: 3600},
	TaskBugFixing:           {Permanent: 100, Task: 1500, Summary: 300, Total: 1900},
	TaskRefactor:            {Permanent: 100, Task: 2000, Summary: 400, Total: 2500},
	TaskArchitecture:        {Permanent: 100, Task: 2000, Summary: 400, Total: 2500},
	TaskTestGeneration:      {Permanent: 100, Task: 1500, Summary: 300, Total: 1900},
	TaskDocumentation:       {Permanent: 100, Task: 1000, Summary: 200, Total: 1300},
}

// BudgetFor returns the budget for a task type.
func BudgetFor(t TaskType) TokenBudget {
	if b, ok := TokenBudgets[t]; ok {
		return b
	}
	return TokenBudgets[TaskChat]
}
