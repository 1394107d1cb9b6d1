package tf

import "fmt"

// MaxRetriesExceededError is returned when a transient failure persists through every allowed attempt. The last
// underlying error is preserved.
type MaxRetriesExceededError struct {
	MaxAttempts int
	WorkingDir  string
	LastErr     error
}

func (err MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("Exhausted retries (%d) for terraform invocation in %s: %v", err.MaxAttempts, err.WorkingDir, err.LastErr)
}

func (err MaxRetriesExceededError) Unwrap() error {
	return err.LastErr
}

// HookExecutionError is returned when a hook command exits with an error.
type HookExecutionError struct {
	HookName   string
	Underlying error
}

func (err HookExecutionError) Error() string {
	return fmt.Sprintf("Hook %s failed: %v", err.HookName, err.Underlying)
}

func (err HookExecutionError) Unwrap() error {
	return err.Underlying
}

// TerraformVersionError is returned when the installed terraform does not satisfy a module's required_version
// constraint.
type TerraformVersionError struct {
	Constraint string
	Actual     string
}

func (err TerraformVersionError) Error() string {
	return fmt.Sprintf("The currently installed version of terraform (%s) is not compatible with the version constraint %q", err.Actual, err.Constraint)
}
