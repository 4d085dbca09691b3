package globals

// Module names
const GCP_AUDIT_MODULE_NAME string = "audit"
const GCP_FLEET_MODULE_NAME string = "fleet"
const GCP_ZOMBIES_MODULE_NAME string = "zombies"
const GCP_FIX_MODULE_NAME string = "fix"
const GCP_CACHE_MODULE_NAME string = "cache"

// Service walker names, also the values accepted by --services
const GCP_COMPUTE_SERVICE_NAME string = "compute"
const GCP_STORAGE_SERVICE_NAME string = "storage"
const GCP_GKE_SERVICE_NAME string = "gke"
const GCP_VERTEX_SERVICE_NAME string = "vertex"
const GCP_SQL_SERVICE_NAME string = "sql"
const GCP_FILESTORE_SERVICE_NAME string = "filestore"
const GCP_IAM_SERVICE_NAME string = "iam"
const GCP_RUN_SERVICE_NAME string = "run"
const GCP_NETWORK_SERVICE_NAME string = "network"

// AllServiceNames is the expansion of --services all, in display order.
var AllServiceNames = []string{
	GCP_COMPUTE_SERVICE_NAME,
	GCP_STORAGE_SERVICE_NAME,
	GCP_GKE_SERVICE_NAME,
	GCP_VERTEX_SERVICE_NAME,
	GCP_SQL_SERVICE_NAME,
	GCP_FILESTORE_SERVICE_NAME,
	GCP_IAM_SERVICE_NAME,
	GCP_RUN_SERVICE_NAME,
	GCP_NETWORK_SERVICE_NAME,
}

// StandardRegions is the default scan footprint when --regions is not given.
var StandardRegions = []string{
	"us-central1",
	"us-west1",
	"us-east1",
	"us-east4",
	"us-west2",
	"us-west4",
}

// ZoneSuffixes are the zone letters probed within each region.
var ZoneSuffixes = []string{"a", "b", "c", "f"}

// DefaultScopingProject hosts the metrics scope used by fleet and fix modes.
const DefaultScopingProject = "ucr-research-computing"

// Concurrency defaults
const DefaultProjectConcurrency = 5
const DefaultScopeWorkers = 10
const AssetSearchWorkers = 20

// Verbosity levels
var GCP_VERBOSITY int = 0

const GCP_VERBOSE_ERRORS = 9
