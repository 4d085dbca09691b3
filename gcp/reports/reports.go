// Package reports holds the aggregated audit data model and its
// renderers (console tables, JSON, HTML, PDF).
package reports

import (
	"encoding/json"
	"fmt"
	"time"

	computeservice "github.com/charles-forsyth/skywalker/gcp/services/computeService"
	filestoreservice "github.com/charles-forsyth/skywalker/gcp/services/filestoreService"
	gkeservice "github.com/charles-forsyth/skywalker/gcp/services/gkeService"
	iamservice "github.com/charles-forsyth/skywalker/gcp/services/iamService"
	networkservice "github.com/charles-forsyth/skywalker/gcp/services/networkService"
	runservice "github.com/charles-forsyth/skywalker/gcp/services/runService"
	sqlservice "github.com/charles-forsyth/skywalker/gcp/services/sqlService"
	storageservice "github.com/charles-forsyth/skywalker/gcp/services/storageService"
	vertexservice "github.com/charles-forsyth/skywalker/gcp/services/vertexService"
)

// Kind identifies one auditable resource family. The set is closed;
// anything else in a KindReport is a programming error.
type Kind string

const (
	KindCompute   Kind = "compute"
	KindStorage   Kind = "storage"
	KindGKE       Kind = "gke"
	KindVertex    Kind = "vertex"
	KindSQL       Kind = "sql"
	KindFilestore Kind = "filestore"
	KindIAM       Kind = "iam"
	KindRun       Kind = "run"
	KindNetwork   Kind = "network"
)

// AllKinds is the audit order. Table output follows it so reports are
// stable across runs.
var AllKinds = []Kind{
	KindCompute, KindStorage, KindGKE, KindVertex, KindSQL,
	KindFilestore, KindIAM, KindRun, KindNetwork,
}

// ComputeReport is the compute family of one project.
type ComputeReport struct {
	Instances     []computeservice.InstanceInfo     `json:"instances"`
	Images        []computeservice.ImageInfo        `json:"images"`
	MachineImages []computeservice.MachineImageInfo `json:"machine_images"`
	Snapshots     []computeservice.SnapshotInfo     `json:"snapshots"`
}

type StorageReport struct {
	Buckets []storageservice.BucketInfo `json:"buckets"`
}

type GKEReport struct {
	Clusters []gkeservice.ClusterInfo `json:"clusters"`
}

type SQLReport struct {
	Instances []sqlservice.SQLInstanceInfo `json:"instances"`
}

type FilestoreReport struct {
	Instances []filestoreservice.FilestoreInstanceInfo `json:"instances"`
}

type RunReport struct {
	Services []runservice.RunServiceInfo `json:"services"`
}

// KindReport is a tagged variant: Kind names the family and exactly one
// payload pointer is non-nil.
type KindReport struct {
	Kind      Kind                          `json:"kind"`
	Compute   *ComputeReport                `json:"compute,omitempty"`
	Storage   *StorageReport                `json:"storage,omitempty"`
	GKE       *GKEReport                    `json:"gke,omitempty"`
	Vertex    *vertexservice.VertexReport   `json:"vertex,omitempty"`
	SQL       *SQLReport                    `json:"sql,omitempty"`
	Filestore *FilestoreReport              `json:"filestore,omitempty"`
	IAM       *iamservice.IAMReport         `json:"iam,omitempty"`
	Run       *RunReport                    `json:"run,omitempty"`
	Network   *networkservice.NetworkReport `json:"network,omitempty"`
}

// Validate checks the tag/payload pairing.
func (r KindReport) Validate() error {
	count := 0
	var set Kind
	for kind, present := range map[Kind]bool{
		KindCompute:   r.Compute != nil,
		KindStorage:   r.Storage != nil,
		KindGKE:       r.GKE != nil,
		KindVertex:    r.Vertex != nil,
		KindSQL:       r.SQL != nil,
		KindFilestore: r.Filestore != nil,
		KindIAM:       r.IAM != nil,
		KindRun:       r.Run != nil,
		KindNetwork:   r.Network != nil,
	} {
		if present {
			count++
			set = kind
		}
	}
	if count != 1 {
		return fmt.Errorf("kind report must carry exactly one payload, has %d", count)
	}
	if set != r.Kind {
		return fmt.Errorf("kind report tagged %q but carries %q payload", r.Kind, set)
	}
	return nil
}

// payload returns whichever family payload the report carries, nil when
// the tag and payload disagree.
func (r KindReport) payload() any {
	switch r.Kind {
	case KindCompute:
		if r.Compute != nil {
			return r.Compute
		}
	case KindStorage:
		if r.Storage != nil {
			return r.Storage
		}
	case KindGKE:
		if r.GKE != nil {
			return r.GKE
		}
	case KindVertex:
		if r.Vertex != nil {
			return r.Vertex
		}
	case KindSQL:
		if r.SQL != nil {
			return r.SQL
		}
	case KindFilestore:
		if r.Filestore != nil {
			return r.Filestore
		}
	case KindIAM:
		if r.IAM != nil {
			return r.IAM
		}
	case KindRun:
		if r.Run != nil {
			return r.Run
		}
	case KindNetwork:
		if r.Network != nil {
			return r.Network
		}
	}
	return nil
}

// ResourceCount is the number of resources in the payload, used for
// summary lines and for skipping empty sections in rendered reports.
func (r KindReport) ResourceCount() int {
	switch r.Kind {
	case KindCompute:
		if r.Compute == nil {
			return 0
		}
		return len(r.Compute.Instances) + len(r.Compute.Images) +
			len(r.Compute.MachineImages) + len(r.Compute.Snapshots)
	case KindStorage:
		if r.Storage == nil {
			return 0
		}
		return len(r.Storage.Buckets)
	case KindGKE:
		if r.GKE == nil {
			return 0
		}
		return len(r.GKE.Clusters)
	case KindVertex:
		if r.Vertex == nil {
			return 0
		}
		return len(r.Vertex.Notebooks) + len(r.Vertex.Models) + len(r.Vertex.Endpoints)
	case KindSQL:
		if r.SQL == nil {
			return 0
		}
		return len(r.SQL.Instances)
	case KindFilestore:
		if r.Filestore == nil {
			return 0
		}
		return len(r.Filestore.Instances)
	case KindIAM:
		if r.IAM == nil {
			return 0
		}
		return len(r.IAM.ServiceAccounts) + len(r.IAM.PolicyBindings)
	case KindRun:
		if r.Run == nil {
			return 0
		}
		return len(r.Run.Services)
	case KindNetwork:
		if r.Network == nil {
			return 0
		}
		return len(r.Network.Firewalls) + len(r.Network.VPCs) + len(r.Network.Addresses)
	}
	return 0
}

// ProjectAuditReport is everything the audit found in one project.
// Services holds at most one entry per kind, in AllKinds order.
type ProjectAuditReport struct {
	ProjectID string       `json:"project_id"`
	ScanTime  time.Time    `json:"scan_time"`
	Services  []KindReport `json:"services"`
}

// MarshalJSON flattens the tagged Services entries into a map keyed by
// kind name, so consumers index a family directly instead of scanning
// an array of tagged objects.
func (p ProjectAuditReport) MarshalJSON() ([]byte, error) {
	services := make(map[Kind]any, len(p.Services))
	for _, s := range p.Services {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("project %s: %w", p.ProjectID, err)
		}
		services[s.Kind] = s.payload()
	}
	return json.Marshal(struct {
		ProjectID string       `json:"project_id"`
		ScanTime  time.Time    `json:"scan_time"`
		Services  map[Kind]any `json:"services"`
	}{p.ProjectID, p.ScanTime, services})
}

// Service returns the report for one kind, nil when that kind was not
// audited (or failed for the whole project).
func (p *ProjectAuditReport) Service(kind Kind) *KindReport {
	for i := range p.Services {
		if p.Services[i].Kind == kind {
			return &p.Services[i]
		}
	}
	return nil
}

// TotalResources sums resource counts across all audited kinds.
func (p *ProjectAuditReport) TotalResources() int {
	total := 0
	for _, s := range p.Services {
		total += s.ResourceCount()
	}
	return total
}
