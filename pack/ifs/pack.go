// Package ifs provides tools over the IBM i Integrated File System.
package ifs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ibmi-agents/db2i-go/domain/pack"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/db2i"
)

// SizeCategories are the thresholds, in MB, used when describing files.
var SizeCategories = map[string]int{
	"LARGE":  100,
	"MEDIUM": 10,
	"SMALL":  1,
}

const ownedObjects = `with ifsobjs (path, type) as (
  select path_name, object_type
    from table(qsys2.object_ownership(?)) a
      where path_name is not null
)
select i.path,
       i.type,
       data_size as size_bytes,
       data_size / 1024 / 1024 as size_mb,
       last_used_timestamp
  from ifsobjs i, lateral (
    select * from
      table(qsys2.ifs_object_statistics(
              start_path_name => path,
              subtree_directories => 'NO'))) z
`

// FilesByUserSQL lists the largest files a user owns.
const FilesByUserSQL = ownedObjects + `order by data_size desc
limit ?`

// FilesBySizeSQL lists files a user owns above a size in MB.
const FilesBySizeSQL = ownedObjects + `where data_size / 1024 / 1024 >= ?
order by data_size desc
limit ?`

const readFile = `select line_number, line
  from table (
      qsys2.ifs_read(
        path_name => ?,
        end_of_line => 'ANY',
        maximum_line_length => default,
        ignore_errors => 'NO')
    )
`

// ReadSQL reads a whole stream file.
const ReadSQL = readFile

// ReadRangeSQL reads an inclusive line range.
const ReadRangeSQL = readFile + `  where line_number between ? and ?`

// SearchSQL returns lines matching a LIKE pattern, case-insensitively.
const SearchSQL = readFile + `  where upper(line) like upper(?)`

// ExistsSQL counts the object at a path.
const ExistsSQL = `select count(*) as file_count
    from table(qsys2.IFS_OBJECT_STATISTICS(
        start_path_name => ?,
        subtree_directories => 'NO'))`

// New creates the IFS pack.
func New(runner db2i.SQLRunner) (*pack.Pack, error) {
	if runner == nil {
		return nil, errors.New("ifs: runner is required")
	}

	return pack.NewBuilder("ifs").
		WithDescription("IFS storage usage and stream file reading").
		AddTools(
			largestFilesTool(runner),
			sizeThresholdTool(runner),
			existsTool(runner),
			readTool(runner),
		).
		Build()
}

type largestInput struct {
	Username string `json:"username"`
	Limit    int    `json:"limit"`
}

func largestFilesTool(runner db2i.SQLRunner) tool.Tool {
	return tool.NewBuilder("get_largest_user_files").
		WithDescription("Find the largest files owned by a specific user in the IBM i IFS").
		WithCategory("ifs").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"username": tool.String("The IBM i user profile to check (default QSYS)"),
			"limit":    tool.Integer("Maximum number of results to return", 10),
		})).
		ReadOnly().
		WithTimeout(120).
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[largestInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			out, err := runner.Run(ctx, FilesByUserSQL, profile(in.Username), positive(in.Limit, 10))
			if err != nil {
				return tool.Result{}, err
			}
			return tool.TextResult(out), nil
		}).
		MustBuild()
}

type sizeInput struct {
	Username  string   `json:"username"`
	MinSizeMB *float64 `json:"min_size_mb"`
	Limit     int      `json:"limit"`
}

func sizeThresholdTool(runner db2i.SQLRunner) tool.Tool {
	return tool.NewBuilder("get_files_by_size_threshold").
		WithDescription("Find files owned by a user that exceed a specific size threshold in MB").
		WithCategory("ifs").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"username":    tool.String("The IBM i user profile to check (default QSYS)"),
			"min_size_mb": {Type: "number", Description: "Minimum file size in megabytes", Default: 10.0},
			"limit":       tool.Integer("Maximum number of results to return", 20),
		})).
		ReadOnly().
		WithTimeout(120).
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[sizeInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			minSize := 10.0
			if in.MinSizeMB != nil && *in.MinSizeMB >= 0 {
				minSize = *in.MinSizeMB
			}
			out, err := runner.Run(ctx, FilesBySizeSQL, profile(in.Username), minSize, positive(in.Limit, 20))
			if err != nil {
				return tool.Result{}, err
			}
			return tool.TextResult(out), nil
		}).
		MustBuild()
}

type pathInput struct {
	Path string `json:"path"`
}

func existsTool(runner db2i.SQLRunner) tool.Tool {
	return tool.NewBuilder("check_file_exists").
		WithDescription("Check if a specified file exists in the IFS").
		WithCategory("ifs").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"path": tool.String("Full path to the file in the IFS"),
		}, "path")).
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[pathInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			ok, err := Exists(ctx, runner, in.Path)
			if err != nil {
				return tool.Result{}, err
			}
			if ok {
				return tool.TextResult(fmt.Sprintf("File %s exists.", in.Path)), nil
			}
			return tool.TextResult(fmt.Sprintf("File %s does not exist.", in.Path)), nil
		}).
		MustBuild()
}

type readInput struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Search    string `json:"search"`
}

func readTool(runner db2i.SQLRunner) tool.Tool {
	return tool.NewBuilder("read_stream_file").
		WithDescription("Read a stream file from the IBM i IFS. Give start_line and end_line to read a range, or search to return matching lines (% is a wildcard).").
		WithCategory("ifs").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"path":       tool.String("Full path to the file in the IFS"),
			"start_line": tool.Integer("First line to read (inclusive)", 0),
			"end_line":   tool.Integer("Last line to read (inclusive)", 0),
			"search":     tool.String("Text to search for"),
		}, "path")).
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[readInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			out, err := Read(ctx, runner, in.Path, in.StartLine, in.EndLine, in.Search)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.TextResult(out), nil
		}).
		MustBuild()
}

// Exists reports whether an object exists at path.
func Exists(ctx context.Context, runner db2i.Querier, path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, fmt.Errorf("%w: path is required", tool.ErrInvalidInput)
	}
	rs, err := runner.Query(ctx, ExistsSQL, path)
	if err != nil {
		return false, err
	}
	counts := rs.Strings("FILE_COUNT")
	if len(counts) == 0 {
		return false, nil
	}
	n, err := strconv.Atoi(counts[0])
	return err == nil && n > 0, nil
}

// Read returns the lines of the file at path. A search pattern takes
// precedence over a line range; without either the whole file is read.
func Read(ctx context.Context, runner db2i.SQLRunner, path string, start, end int, search string) (string, error) {
	ok, err := Exists(ctx, runner, path)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("File %s does not exist.", path), nil
	}

	switch {
	case search != "":
		if !strings.Contains(search, "%") {
			search = "%" + search + "%"
		}
		return runner.Run(ctx, SearchSQL, path, search)
	case start > 0 || end > 0:
		if start <= 0 {
			start = 1
		}
		if end <= 0 || end < start {
			return "", fmt.Errorf("%w: end_line must be >= start_line", tool.ErrInvalidInput)
		}
		return runner.Run(ctx, ReadRangeSQL, path, start, end)
	default:
		return runner.Run(ctx, ReadSQL, path)
	}
}

func profile(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return "QSYS"
	}
	return name
}

func positive(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
