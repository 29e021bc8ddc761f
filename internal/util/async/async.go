package async

import (
	"context"
	"errors"
	"fmt"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes multiple tasks in parallel and waits for all of them.
// Every failure is returned, joined, and prefixed with its task name.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "pve1", Func: fetchStatus("pve1")},
//	    {Name: "pve2", Func: fetchStatus("pve2")},
//	}
//	if err := RunParallel(ctx, tasks); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	errs := make([]error, len(tasks))
	done := make(chan struct{}, len(tasks))

	for i, task := range tasks {
		go func() {
			defer func() { done <- struct{}{} }()
			if err := task.Func(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", task.Name, err)
			}
		}()
	}

	for range len(tasks) {
		<-done
	}

	return errors.Join(errs...)
}

// Result is the outcome of one Collect task.
type Result[T any] struct {
	Name  string
	Value T
	Err   error
}

// Func is a named task producing a value.
type Func[T any] struct {
	Name string
	Func func(context.Context) (T, error)
}

// Collect runs every task concurrently and returns their results in task
// order, regardless of completion order. A failed task never affects the
// others.
func Collect[T any](ctx context.Context, tasks []Func[T]) []Result[T] {
	results := make([]Result[T], len(tasks))
	done := make(chan struct{}, len(tasks))

	for i, task := range tasks {
		go func() {
			defer func() { done <- struct{}{} }()
			v, err := task.Func(ctx)
			results[i] = Result[T]{Name: task.Name, Value: v, Err: err}
		}()
	}

	for range len(tasks) {
		<-done
	}

	return results
}
