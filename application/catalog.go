package application

import (
	"fmt"

	"github.com/ibmi-agents/db2i-go/domain/config"
	"github.com/ibmi-agents/db2i-go/domain/pack"
	"github.com/ibmi-agents/db2i-go/domain/profile"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/domain/workflow"
	"github.com/ibmi-agents/db2i-go/infrastructure/db2i"
	"github.com/ibmi-agents/db2i-go/infrastructure/storage/memory"
	db2ipack "github.com/ibmi-agents/db2i-go/pack/db2i"
	"github.com/ibmi-agents/db2i-go/pack/ifs"
	"github.com/ibmi-agents/db2i-go/pack/jvm"
	"github.com/ibmi-agents/db2i-go/pack/performance"
	"github.com/ibmi-agents/db2i-go/pack/ptf"
	"github.com/ibmi-agents/db2i-go/pack/sample"
	"github.com/ibmi-agents/db2i-go/pack/security"
	"github.com/ibmi-agents/db2i-go/pack/services"
)

// DefaultModel drives the built-in agents and teams.
const DefaultModel = "openai:gpt-4o"

// PackOptions selects optional tools.
type PackOptions struct {
	// Corrective registers run_corrective_query.
	Corrective bool
}

// Packs builds every tool pack over runner and database.
func Packs(runner db2i.SQLRunner, database db2ipack.Database, opts PackOptions) ([]*pack.Pack, error) {
	builders := []func() (*pack.Pack, error){
		func() (*pack.Pack, error) { return db2ipack.New(database) },
		func() (*pack.Pack, error) { return ptf.New(runner) },
		func() (*pack.Pack, error) { return security.New(runner, security.WithCorrective(opts.Corrective)) },
		func() (*pack.Pack, error) { return performance.New(runner) },
		func() (*pack.Pack, error) { return ifs.New(runner) },
		func() (*pack.Pack, error) { return jvm.New(runner) },
		func() (*pack.Pack, error) { return services.New(runner) },
		func() (*pack.Pack, error) { return sample.New(runner) },
	}
	packs := make([]*pack.Pack, 0, len(builders))
	for _, build := range builders {
		p, err := build()
		if err != nil {
			return nil, err
		}
		packs = append(packs, p)
	}
	return packs, nil
}

// NewRegistry installs packs into a fresh in-memory registry.
func NewRegistry(packs ...*pack.Pack) (tool.Registry, error) {
	reg := memory.NewToolRegistry()
	if err := pack.Install(reg, packs...); err != nil {
		return nil, fmt.Errorf("install packs: %w", err)
	}
	return reg, nil
}

// BuiltinCatalog returns the agents, teams and workflows that ship with the
// toolkit. Entries from a catalog file replace these by name.
func BuiltinCatalog() *config.Catalog {
	return &config.Catalog{
		Agents:    builtinAgents(),
		Teams:     builtinTeams(),
		Workflows: builtinWorkflows(),
	}
}

func builtinAgents() []profile.Agent {
	return []profile.Agent{
		{
			Name:        "ptf-assistant",
			Description: "Checks for missing PTFs and PTF group currency.",
			Model:       DefaultModel,
			Instructions: "Use get_ptf_currency_info to check overall PTF group currency. " +
				"Use get_missing_ptf_info with a PTF group code to list missing fixes and " +
				"recommend what to install. list_ptf_groups shows the valid group codes.",
			Tools:    []string{"get_ptf_currency_info", "get_missing_ptf_info", "list_ptf_groups"},
			Storage:  "agno-storage",
			Markdown: true,
		},
		{
			Name:        "security-assistant",
			Description: "Finds user profiles that are not protected from *PUBLIC.",
			Model:       DefaultModel,
			Instructions: "Count and list user profiles whose *PUBLIC authority is not *EXCLUDE. " +
				"Generate corrective statements with fix_exposed_profiles and explain each one " +
				"before anything is run.",
			Tools:    []string{"count_exposed_profiles", "list_exposed_profiles", "fix_exposed_profiles", "get_security_metrics"},
			Storage:  "agno-storage",
			Markdown: true,
		},
		{
			Name:        "performance-assistant",
			Description: "Reports system status, activity, memory pools and Collection Services data.",
			Model:       DefaultModel,
			Instructions: "Pick the metric tool that matches the question. Use analyze_system_performance " +
				"for an overview and get_active_jobs for the busiest jobs. Explain numbers with units.",
			Tools: []string{
				"analyze_system_performance",
				"get_system_status",
				"get_system_activity",
				"get_memory_pools",
				"get_remote_connections",
				"get_temp_storage_buckets",
				"get_unnamed_temp_storage",
				"get_http_server_info",
				"get_system_values",
				"get_collection_services_config",
				"get_active_jobs",
				"get_performance_metrics",
			},
			Storage:  "agno-storage",
			Markdown: true,
		},
		{
			Name:        "storage-assistant",
			Description: "Finds large IFS files and reads stream files.",
			Model:       DefaultModel,
			Instructions: "Use get_largest_user_files for the biggest files of a user and " +
				"get_files_by_size_threshold for files over a size in MB. Report sizes in MB.",
			Tools:    []string{"get_largest_user_files", "get_files_by_size_threshold", "check_file_exists", "read_stream_file"},
			Storage:  "agno-storage",
			Markdown: true,
		},
		{
			Name:        "jvm-assistant",
			Description: "Analyzes JVM jobs, garbage collection and heap usage.",
			Model:       DefaultModel,
			Instructions: "Use get_top_gc_jobs for garbage collection pressure and get_large_heap_jobs " +
				"for memory. get_jvm_options explains tuning options.",
			Tools:    []string{"get_top_gc_jobs", "get_jvm_by_user", "get_large_heap_jobs", "get_jvm_options"},
			Storage:  "agno-storage",
			Markdown: true,
		},
		{
			Name:        "sql-services-assistant",
			Description: "Explains the IBM i SQL services catalog.",
			Model:       DefaultModel,
			Instructions: "List categories first, then the services in a category, then the details " +
				"of one service. Use generate_sql_definition to show the DDL of an object.",
			Tools:    []string{"list_service_categories", "get_services_by_category", "get_service_info", "generate_sql_definition"},
			Storage:  "agno-storage",
			Markdown: true,
		},
		{
			Name:         "sql-agent",
			Description:  "Answers questions with read-only SQL over the configured schema.",
			Model:        DefaultModel,
			Instructions: db2ipack.Instructions,
			Tools:        []string{"list_tables", "describe_table", "run_sql_query"},
			Storage:      "agno-storage",
		},
		{
			Name:         "employee-info",
			Description:  "Looks up employees in the SAMPLE schema.",
			Model:        DefaultModel,
			Instructions: "Fetch the employee by id and summarize their name, job and salary.",
			Tools:        []string{"fetch_employee_info"},
			Storage:      "agno-storage",
			Markdown:     true,
		},
	}
}

func builtinTeams() []profile.Team {
	members := []string{"performance-assistant", "ptf-assistant", "storage-assistant", "security-assistant"}
	return []profile.Team{
		{
			Name:        "ibmi-team",
			Mode:        profile.Route,
			Model:       DefaultModel,
			Description: "Routes each question to the most appropriate specialist.",
			Members:     members,
			Instructions: "Route metrics and job questions to performance-assistant, PTF and maintenance " +
				"questions to ptf-assistant, IFS and disk questions to storage-assistant and profile " +
				"security questions to security-assistant. Questions that span domains go to performance-assistant.",
		},
		{
			Name:        "performance-team",
			Mode:        profile.Coordinate,
			Model:       DefaultModel,
			Description: "Coordinates the specialists into one system analysis.",
			Members:     members,
			Instructions: "Start with a performance baseline, then assess PTF status, storage and " +
				"security. Merge the findings into one set of recommendations.",
		},
	}
}

func builtinWorkflows() []workflow.Workflow {
	return []workflow.Workflow{
		{
			Name:        "quick-performance",
			Description: "Fast performance overview with key system metrics.",
			Steps: []workflow.Step{
				{Name: "system-status", Tool: "get_system_status"},
			},
		},
		{
			Name:        "comprehensive-performance",
			Description: "Complete system performance analysis with a quality-checked report.",
			Steps: []workflow.Step{
				{Name: "system-resources", Tool: "analyze_system_performance"},
				{Name: "process", Function: workflow.PerformanceDataProcessor},
				{
					Name: "report",
					Loop: &workflow.Loop{
						MaxIterations: 2,
						EndCondition:  workflow.ComprehensiveQualityCheck,
						Steps: []workflow.Step{
							{Name: "collection-services", Tool: "get_collection_services_config"},
							{Name: "active-jobs", Tool: "get_active_jobs", Input: map[string]any{"limit": 10}},
						},
					},
				},
			},
		},
		{
			Name:        "iterative-performance",
			Description: "Repeats the analysis until it meets the quality bar.",
			Steps: []workflow.Step{
				{Name: "baseline", Tool: "get_system_status"},
				{
					Name: "refine",
					Loop: &workflow.Loop{
						MaxIterations: 3,
						EndCondition:  workflow.ComprehensiveQualityCheck,
						Steps: []workflow.Step{
							{Name: "analysis", Tool: "analyze_system_performance"},
							{Name: "process", Function: workflow.PerformanceDataProcessor},
						},
					},
				},
				{Name: "temp-storage", Tool: "get_temp_storage_buckets"},
			},
		},
		{
			Name:        "ptf-currency",
			Description: "PTF group currency followed by the missing HIPER and security fixes.",
			Steps: []workflow.Step{
				{Name: "currency", Tool: "get_ptf_currency_info"},
				{Name: "hiper", Tool: "get_missing_ptf_info", Input: map[string]any{"ptf_group": "SF99739"}},
				{Name: "security", Tool: "get_missing_ptf_info", Input: map[string]any{"ptf_group": "SF99738"}},
			},
		},
		{
			Name:        "security-audit",
			Description: "Counts and lists exposed profiles and generates the corrective statements.",
			Steps: []workflow.Step{
				{Name: "count", Tool: "count_exposed_profiles"},
				{Name: "list", Tool: "list_exposed_profiles"},
				{Name: "fix", Tool: "fix_exposed_profiles"},
			},
		},
	}
}
