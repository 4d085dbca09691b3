package reports

import (
	"fmt"
	"strconv"
	"strings"

	iamservice "github.com/charles-forsyth/skywalker/gcp/services/iamService"
	"github.com/charles-forsyth/skywalker/gcp/shared"
	"github.com/charles-forsyth/skywalker/internal"
)

// TableFiles flattens one project report into console tables, one per
// populated resource family, in AllKinds order. Empty families produce
// no table.
func TableFiles(report ProjectAuditReport) []internal.TableFile {
	var tables []internal.TableFile
	for _, kind := range AllKinds {
		svc := report.Service(kind)
		if svc == nil || svc.ResourceCount() == 0 {
			continue
		}
		tables = append(tables, kindTables(report.ProjectID, *svc)...)
	}
	return tables
}

func kindTables(projectID string, r KindReport) []internal.TableFile {
	switch r.Kind {
	case KindCompute:
		return computeTables(projectID, r.Compute)
	case KindStorage:
		return storageTables(projectID, r.Storage)
	case KindGKE:
		return gkeTables(projectID, r.GKE)
	case KindVertex:
		return vertexTables(projectID, r)
	case KindSQL:
		return sqlTables(projectID, r.SQL)
	case KindFilestore:
		return filestoreTables(projectID, r.Filestore)
	case KindIAM:
		return iamTables(projectID, r.IAM.ServiceAccounts, r.IAM.PolicyBindings)
	case KindRun:
		return runTables(projectID, r.Run)
	case KindNetwork:
		return networkTables(projectID, r)
	}
	return nil
}

func computeTables(projectID string, r *ComputeReport) []internal.TableFile {
	var tables []internal.TableFile

	if len(r.Instances) > 0 {
		var body [][]string
		for _, inst := range r.Instances {
			gpus := "-"
			if len(inst.GPUs) > 0 {
				var parts []string
				for _, gpu := range inst.GPUs {
					parts = append(parts, fmt.Sprintf("%dx %s", gpu.Count, gpu.Type))
				}
				gpus = strings.Join(parts, ", ")
			}
			externalIP := inst.ExternalIP
			if externalIP == "" {
				externalIP = "-"
			}
			body = append(body, []string{
				projectID, inst.Name, inst.Zone, inst.Status, inst.MachineType,
				gpus, inst.InternalIP, externalIP,
			})
		}
		tables = append(tables, internal.TableFile{
			Name:   "compute-instances",
			Header: []string{"Project", "Name", "Zone", "Status", "Machine Type", "GPUs", "Internal IP", "External IP"},
			Body:   body,
		})
	}

	if len(r.Images) > 0 {
		var body [][]string
		for _, img := range r.Images {
			body = append(body, []string{
				projectID, img.Name, img.Status,
				strconv.FormatInt(img.DiskSizeGB, 10) + " GB",
				shared.FormatBytes(img.ArchiveSizeBytes),
				img.CreationTimestamp,
			})
		}
		tables = append(tables, internal.TableFile{
			Name:   "compute-images",
			Header: []string{"Project", "Name", "Status", "Disk Size", "Archive Size", "Created"},
			Body:   body,
		})
	}

	if len(r.MachineImages) > 0 {
		var body [][]string
		for _, img := range r.MachineImages {
			body = append(body, []string{
				projectID, img.Name, img.Status,
				shared.FormatBytes(img.TotalStorageBytes),
				img.CreationTimestamp,
			})
		}
		tables = append(tables, internal.TableFile{
			Name:   "compute-machine-images",
			Header: []string{"Project", "Name", "Status", "Storage", "Created"},
			Body:   body,
		})
	}

	if len(r.Snapshots) > 0 {
		var body [][]string
		for _, snap := range r.Snapshots {
			body = append(body, []string{
				projectID, snap.Name, snap.Status,
				strconv.FormatInt(snap.DiskSizeGB, 10) + " GB",
				shared.FormatBytes(snap.StorageBytes),
				snap.CreationTimestamp,
			})
		}
		tables = append(tables, internal.TableFile{
			Name:   "compute-snapshots",
			Header: []string{"Project", "Name", "Status", "Disk Size", "Storage", "Created"},
			Body:   body,
		})
	}

	return tables
}

func storageTables(projectID string, r *StorageReport) []internal.TableFile {
	var body [][]string
	for _, b := range r.Buckets {
		size := "-"
		if b.SizeBytes > 0 {
			size = shared.FormatBytes(b.SizeBytes)
		}
		body = append(body, []string{
			projectID, b.Name, b.Location, b.StorageClass, size,
			b.PublicAccessPrevention,
			shared.BoolToYesNo(b.VersioningEnabled),
			shared.BoolToYesNo(b.UniformBucketLevelAccess),
		})
	}
	return []internal.TableFile{{
		Name:   "storage-buckets",
		Header: []string{"Project", "Name", "Location", "Class", "Size", "Public Access Prevention", "Versioning", "Uniform Access"},
		Body:   body,
	}}
}

func gkeTables(projectID string, r *GKEReport) []internal.TableFile {
	var body [][]string
	for _, cluster := range r.Clusters {
		nodes := int64(0)
		for _, pool := range cluster.NodePools {
			nodes += pool.NodeCount
		}
		body = append(body, []string{
			projectID, cluster.Name, cluster.Location, cluster.Status,
			cluster.Version, strconv.FormatInt(nodes, 10),
			strconv.Itoa(len(cluster.NodePools)), cluster.Network,
		})
	}
	return []internal.TableFile{{
		Name:   "gke-clusters",
		Header: []string{"Project", "Name", "Location", "Status", "Version", "Nodes", "Node Pools", "Network"},
		Body:   body,
	}}
}

func vertexTables(projectID string, r KindReport) []internal.TableFile {
	var tables []internal.TableFile

	if len(r.Vertex.Notebooks) > 0 {
		var body [][]string
		for _, nb := range r.Vertex.Notebooks {
			body = append(body, []string{
				projectID, nb.Name, nb.Location, nb.State, nb.Creator, nb.UpdateTime,
			})
		}
		tables = append(tables, internal.TableFile{
			Name:   "vertex-notebooks",
			Header: []string{"Project", "Name", "Location", "State", "Creator", "Updated"},
			Body:   body,
		})
	}

	if len(r.Vertex.Models) > 0 {
		var body [][]string
		for _, model := range r.Vertex.Models {
			body = append(body, []string{
				projectID, model.DisplayName, model.Location, model.VersionID,
				model.CreateTime.Format("2006-01-02"),
			})
		}
		tables = append(tables, internal.TableFile{
			Name:   "vertex-models",
			Header: []string{"Project", "Name", "Location", "Version", "Created"},
			Body:   body,
		})
	}

	if len(r.Vertex.Endpoints) > 0 {
		var body [][]string
		for _, ep := range r.Vertex.Endpoints {
			body = append(body, []string{
				projectID, ep.DisplayName, ep.Location, strconv.Itoa(ep.DeployedModels),
			})
		}
		tables = append(tables, internal.TableFile{
			Name:   "vertex-endpoints",
			Header: []string{"Project", "Name", "Location", "Deployed Models"},
			Body:   body,
		})
	}

	return tables
}

func sqlTables(projectID string, r *SQLReport) []internal.TableFile {
	var body [][]string
	for _, inst := range r.Instances {
		body = append(body, []string{
			projectID, inst.Name, inst.Region, inst.DatabaseVersion, inst.Tier,
			inst.Status,
			shared.DefaultString(inst.PublicIP, "-"),
			shared.DefaultString(inst.PrivateIP, "-"),
			strconv.FormatInt(inst.StorageLimitGB, 10) + " GB",
		})
	}
	return []internal.TableFile{{
		Name:   "sql-instances",
		Header: []string{"Project", "Name", "Region", "Version", "Tier", "Status", "Public IP", "Private IP", "Storage"},
		Body:   body,
	}}
}

func filestoreTables(projectID string, r *FilestoreReport) []internal.TableFile {
	var body [][]string
	for _, inst := range r.Instances {
		body = append(body, []string{
			projectID, inst.Name, inst.Location, inst.Tier, inst.State,
			strconv.FormatInt(inst.CapacityGB, 10) + " GB",
			shared.FormatList(inst.IPAddresses, 3),
		})
	}
	return []internal.TableFile{{
		Name:   "filestore-instances",
		Header: []string{"Project", "Name", "Location", "Tier", "State", "Capacity", "IPs"},
		Body:   body,
	}}
}

// iamTables renders service accounts and policy bindings. Bindings fan
// out one row per member so the rows stay grep-friendly.
func iamTables(projectID string, accounts []iamservice.ServiceAccountInfo, bindings []iamservice.PolicyBindingInfo) []internal.TableFile {
	var tables []internal.TableFile

	if len(accounts) > 0 {
		var body [][]string
		for _, sa := range accounts {
			keyCount := strconv.Itoa(len(sa.Keys))
			body = append(body, []string{
				projectID, sa.Email, sa.DisplayName,
				shared.BoolToYesNo(sa.Disabled), keyCount,
			})
		}
		tables = append(tables, internal.TableFile{
			Name:   "iam-service-accounts",
			Header: []string{"Project", "Email", "Display Name", "Disabled", "User Keys"},
			Body:   body,
		})
	}

	if len(bindings) > 0 {
		var body [][]string
		for _, binding := range bindings {
			for i, member := range binding.Members {
				display := "-"
				if i < len(binding.MemberNames) && binding.MemberNames[i] != "" {
					display = binding.MemberNames[i]
				}
				body = append(body, []string{
					projectID, shared.FormatRoleShort(binding.Role),
					shared.GetPrincipalType(member), member, display,
				})
			}
		}
		tables = append(tables, internal.TableFile{
			Name:   "iam-policy-bindings",
			Header: []string{"Project", "Role", "Type", "Member", "Display Name"},
			Body:   body,
		})
	}

	return tables
}

func runTables(projectID string, r *RunReport) []internal.TableFile {
	var body [][]string
	for _, svc := range r.Services {
		body = append(body, []string{
			projectID, svc.Name, svc.Region, svc.URL, svc.Image,
			svc.IngressTraffic, svc.LastModifier,
		})
	}
	return []internal.TableFile{{
		Name:   "run-services",
		Header: []string{"Project", "Name", "Region", "URL", "Image", "Ingress", "Last Modifier"},
		Body:   body,
	}}
}

func networkTables(projectID string, r KindReport) []internal.TableFile {
	var tables []internal.TableFile

	if len(r.Network.Firewalls) > 0 {
		var body [][]string
		for _, fw := range r.Network.Firewalls {
			body = append(body, []string{
				projectID, fw.Name, fw.Network, fw.Direction, fw.Action,
				shared.FormatList(fw.Ports, 5),
				shared.FormatList(fw.SourceRanges, 3),
				shared.BoolToYesNo(fw.Disabled),
				shared.BoolToYesNo(fw.Exposed),
			})
		}
		tables = append(tables, internal.TableFile{
			Name:   "network-firewalls",
			Header: []string{"Project", "Name", "Network", "Direction", "Action", "Ports", "Sources", "Disabled", "Open"},
			Body:   body,
		})
	}

	if len(r.Network.VPCs) > 0 {
		var body [][]string
		for _, vpc := range r.Network.VPCs {
			if len(vpc.Subnets) == 0 {
				body = append(body, []string{
					projectID, vpc.Name, shared.BoolToYesNo(vpc.AutoCreateSubnetworks),
					"-", "-", "-",
				})
				continue
			}
			for _, subnet := range vpc.Subnets {
				body = append(body, []string{
					projectID, vpc.Name, shared.BoolToYesNo(vpc.AutoCreateSubnetworks),
					subnet.Name, subnet.Region, subnet.IPRange,
				})
			}
		}
		tables = append(tables, internal.TableFile{
			Name:   "network-vpcs",
			Header: []string{"Project", "VPC", "Auto Subnets", "Subnet", "Region", "CIDR"},
			Body:   body,
		})
	}

	if len(r.Network.Addresses) > 0 {
		var body [][]string
		for _, addr := range r.Network.Addresses {
			body = append(body, []string{
				projectID, addr.Name, addr.Address, addr.AddressType,
				shared.DefaultString(addr.Region, "global"),
				addr.Status,
				shared.DefaultString(addr.User, "-"),
			})
		}
		tables = append(tables, internal.TableFile{
			Name:   "network-addresses",
			Header: []string{"Project", "Name", "Address", "Type", "Region", "Status", "Used By"},
			Body:   body,
		})
	}

	return tables
}
