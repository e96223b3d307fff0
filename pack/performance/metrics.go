package performance

import "sort"

// Metric is one performance query.
type Metric struct {
	ID          string
	Tool        string
	Name        string
	Description string
	// Interval is the suggested sampling period in seconds.
	Interval int
	SQL      string
}

// Metrics are the queries the pack exposes, one tool each.
var Metrics = []Metric{
	{
		ID:          "system_status",
		Tool:        "get_system_status",
		Name:        "System Statistics",
		Description: "Overall system performance statistics with CPU, memory, and I/O metrics",
		Interval:    60,
		SQL:         `SELECT * FROM TABLE(QSYS2.SYSTEM_STATUS(RESET_STATISTICS=>'YES',DETAILED_INFO=>'ALL')) X`,
	},
	{
		ID:          "system_activity",
		Tool:        "get_system_activity",
		Name:        "System Activity",
		Description: "Current system activity information including active jobs and resource utilization",
		Interval:    20,
		SQL:         `SELECT * FROM TABLE(QSYS2.SYSTEM_ACTIVITY_INFO())`,
	},
	{
		ID:          "remote_connections",
		Tool:        "get_remote_connections",
		Name:        "Remote Connections",
		Description: "Number of established remote connections to the system",
		Interval:    30,
		SQL: `SELECT COUNT(REMOTE_ADDRESS) as REMOTE_CONNECTIONS
FROM qsys2.netstat_info
WHERE TCP_STATE = 'ESTABLISHED'
AND REMOTE_ADDRESS != '::1'
AND REMOTE_ADDRESS != '127.0.0.1'`,
	},
	{
		ID:          "memory_pools",
		Tool:        "get_memory_pools",
		Name:        "Memory Pool Information",
		Description: "Information about memory pool sizes and thread utilization",
		Interval:    100,
		SQL: `SELECT POOL_NAME, CURRENT_SIZE, DEFINED_SIZE,
       MAXIMUM_ACTIVE_THREADS, CURRENT_THREADS, RESERVED_SIZE
FROM TABLE(QSYS2.MEMORY_POOL(RESET_STATISTICS=>'YES')) X`,
	},
	{
		ID:          "temp_storage_buckets",
		Tool:        "get_temp_storage_buckets",
		Name:        "Named Temporary Storage Buckets",
		Description: "Information about named temporary storage usage",
		Interval:    90,
		SQL: `SELECT REPLACE(UPPER(REPLACE(GLOBAL_BUCKET_NAME, '*','')), ' ', '_') as NAME,
       BUCKET_CURRENT_SIZE as CURRENT_SIZE, BUCKET_PEAK_SIZE as PEAK_SIZE
FROM QSYS2.SystmpSTG
WHERE GLOBAL_BUCKET_NAME IS NOT NULL`,
	},
	{
		ID:          "unnamed_temp_storage",
		Tool:        "get_unnamed_temp_storage",
		Name:        "Unnamed Temporary Storage Usage",
		Description: "Total usage of unnamed temporary storage buckets",
		Interval:    90,
		SQL: `SELECT SUM(BUCKET_CURRENT_SIZE) as CURRENT_SIZE,
       SUM(BUCKET_PEAK_SIZE) as PEAK_SIZE
FROM QSYS2.SystmpSTG
WHERE GLOBAL_BUCKET_NAME IS NULL`,
	},
	{
		ID:          "http_server",
		Tool:        "get_http_server_info",
		Name:        "HTTP Server Metrics",
		Description: "Performance metrics for HTTP servers including connections and request handling",
		Interval:    60,
		SQL: `SELECT SERVER_NAME CONCAT '_' CONCAT REPLACE(HTTP_FUNCTION, ' ','_') as SERVER_FUNC,
       SERVER_NORMAL_CONNECTIONS, SERVER_SSL_CONNECTIONS, SERVER_ACTIVE_THREADS,
       SERVER_IDLE_THREADS, SERVER_TOTAL_REQUESTS, SERVER_TOTAL_REQUESTS_REJECTED,
       SERVER_TOTAL_RESPONSES, REQUESTS, RESPONSES, NONCACHE_RESPONSES,
       BYTES_RECEIVED, BYTES_SENT, NONCACHE_PROCESSING_TIME, CACHE_PROCESSING_TIME
FROM QSYS2.HTTP_SERVER_INFO`,
	},
	{
		ID:          "system_values",
		Tool:        "get_system_values",
		Name:        "System Values",
		Description: "Current numeric system values that affect performance",
		Interval:    333,
		SQL: `SELECT SYSTEM_VALUE_NAME, CURRENT_NUMERIC_VALUE
FROM QSYS2.SYSTEM_VALUE_INFO
WHERE CURRENT_NUMERIC_VALUE IS NOT NULL`,
	},
	{
		ID:          "collection_services",
		Tool:        "get_collection_services",
		Name:        "Collection Services Configuration",
		Description: "Current configuration of Collection Services",
		Interval:    600,
		SQL:         `SELECT * FROM QSYS2.COLLECTION_SERVICES_INFO`,
	},
	{
		ID:          "collection_categories",
		Tool:        "get_collection_categories",
		Name:        "Collection Services Categories",
		Description: "Collection Services category settings and intervals",
		Interval:    600,
		SQL: `SELECT cs_category, cs_interval
FROM QSYS2.COLLECTION_SERVICES_INFO,
     LATERAL (SELECT * FROM JSON_TABLE(CATEGORY_LIST, 'lax $.category_list[*]'
     COLUMNS(cs_category CLOB(1K) CCSID 1208 PATH 'lax $."category"',
             cs_interval CLOB(1K) CCSID 1208 PATH 'lax $."interval"'))) a`,
	},
}

// ActiveJobsSQL ranks QUSRWRK and QSYSWRK jobs by CPU time.
const ActiveJobsSQL = `select CPU_TIME, A.* FROM
table(QSYS2.ACTIVE_JOB_INFO(SUBSYSTEM_LIST_FILTER => 'QUSRWRK,QSYSWRK')) A
ORDER BY CPU_TIME DESC
LIMIT ?`

// Lookup returns the metric with the given id.
func Lookup(id string) (Metric, bool) {
	for _, m := range Metrics {
		if m.ID == id {
			return m, true
		}
	}
	return Metric{}, false
}

// MetricIDs returns the metric ids in sorted order.
func MetricIDs() []string {
	ids := make([]string, len(Metrics))
	for i, m := range Metrics {
		ids[i] = m.ID
	}
	sort.Strings(ids)
	return ids
}
