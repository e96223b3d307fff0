package pack_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ibmi-agents/db2i-go/domain/pack"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/storage/memory"
)

func testTool(name string) tool.Tool {
	return tool.NewBuilder(name).
		WithHandler(func(context.Context, json.RawMessage) (tool.Result, error) {
			return tool.TextResult(name), nil
		}).
		MustBuild()
}

func TestBuilder(t *testing.T) {
	t.Parallel()

	p, err := pack.NewBuilder("jvm").
		WithDescription("JVM diagnostics").
		AddTools(testTool("get_top_gc_jobs"), testTool("get_jvm_by_user")).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := p.ToolNames(); len(got) != 2 || got[0] != "get_top_gc_jobs" {
		t.Errorf("ToolNames() = %v", got)
	}
	if _, ok := p.GetTool("get_jvm_by_user"); !ok {
		t.Error("GetTool() missed a tool")
	}
	if _, ok := p.GetTool("missing"); ok {
		t.Error("GetTool() found a missing tool")
	}
}

func TestBuilder_Errors(t *testing.T) {
	t.Parallel()

	if _, err := pack.NewBuilder("").Build(); !errors.Is(err, pack.ErrInvalidPack) {
		t.Errorf("empty name error = %v", err)
	}
	_, err := pack.NewBuilder("ptf").AddTools(testTool("a"), testTool("a")).Build()
	if !errors.Is(err, pack.ErrInvalidPack) {
		t.Errorf("duplicate tool error = %v", err)
	}
}

func TestInstall(t *testing.T) {
	t.Parallel()

	a, _ := pack.NewBuilder("a").AddTools(testTool("one"), testTool("two")).Build()
	b, _ := pack.NewBuilder("b").AddTools(testTool("two")).Build()

	reg := memory.NewToolRegistry()
	if err := pack.Install(reg, a); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if !reg.Has("one") || !reg.Has("two") {
		t.Errorf("registry names = %v", reg.Names())
	}
	if err := pack.Install(reg, b); !errors.Is(err, tool.ErrToolExists) {
		t.Errorf("Install() duplicate error = %v, want ErrToolExists", err)
	}
}
