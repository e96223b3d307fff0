// Package sample provides a tool over the Db2 SAMPLE schema.
package sample

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ibmi-agents/db2i-go/domain/pack"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/db2i"
)

// EmployeeSQL selects one employee by number.
const EmployeeSQL = `select * from sample.employee where empno = ?`

type employeeInput struct {
	ID string `json:"id"`
}

// New creates the sample pack.
func New(runner db2i.SQLRunner) (*pack.Pack, error) {
	if runner == nil {
		return nil, errors.New("sample: runner is required")
	}

	employee := tool.NewBuilder("fetch_employee_info").
		WithDescription("Get employee information for provided employee id").
		WithCategory("sample").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"id": tool.String("Employee ID, e.g. 000010"),
		}, "id")).
		ReadOnly().
		Cacheable().
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[employeeInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			id := strings.TrimSpace(in.ID)
			if id == "" {
				return tool.Result{}, fmt.Errorf("%w: id is required", tool.ErrInvalidInput)
			}
			out, err := runner.Run(ctx, EmployeeSQL, id)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.TextResult(out), nil
		}).
		MustBuild()

	return pack.NewBuilder("sample").
		WithDescription("Employee lookups over the SAMPLE database").
		AddTools(employee).
		Build()
}
