package sshbatch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stacklok/rrbroker/pkg/allocator"
	"github.com/stacklok/rrbroker/pkg/resourceconfig"
	"github.com/stacklok/rrbroker/pkg/session"
)

// overrides merges a JobInformation's per-call fields over a
// ResourceConfig's defaults, per the spec's override precedence: a
// non-zero JobInformation value wins.
type overrides struct {
	queue          string
	project        string
	exclusive      bool
	nbNodes        int
	nbCPUs         int
	nbGPUs         int
	memory         int
	reservation    string
	allocationTime string
}

func mergeOverrides(rc *resourceconfig.ResourceConfig, info *allocator.JobInformation, defaultQueue, defaultTime string) overrides {
	o := overrides{
		queue:          rc.Queue,
		project:        rc.Project,
		exclusive:      rc.Exclusive,
		nbNodes:        rc.NbNodes,
		nbCPUs:         rc.NbCPUs,
		nbGPUs:         rc.NbGPUs,
		memory:         rc.Memory,
		allocationTime: defaultTime,
	}
	if o.queue == "" {
		o.queue = defaultQueue
	}
	if info != nil {
		if info.Queue != "" {
			o.queue = info.Queue
		}
		if info.Project != "" {
			o.project = info.Project
		}
		if info.Exclusive {
			o.exclusive = true
		}
		if info.NbNodes != 0 {
			o.nbNodes = info.NbNodes
		}
		if info.NbCPUs != 0 {
			o.nbCPUs = info.NbCPUs
		}
		if info.NbGPUs != 0 {
			o.nbGPUs = info.NbGPUs
		}
		if info.Memory != 0 {
			o.memory = info.Memory
		}
		if info.Reservation != "" {
			o.reservation = info.Reservation
		}
		if info.AllocationTime != "" {
			o.allocationTime = info.AllocationTime
		}
	}
	return o
}

// buildSallocCommand constructs the ssh-wrapped salloc command line
// described in the design spec's SSH-batch allocator section, minus the
// literal "ssh -i <key> user@host" wrapper: the command runs over an
// already-established connection from runner.Run, not a nested shell-out.
// Nodes default to 0, which omits the -N flag entirely.
func buildSallocCommand(allocTimeoutSeconds int64, sess *session.Session, configID string, o overrides) string {
	var b strings.Builder
	b.WriteString("salloc --no-shell")
	fmt.Fprintf(&b, " --immediate=%d", allocTimeoutSeconds)
	if o.queue != "" {
		fmt.Fprintf(&b, " -p %s", o.queue)
	}
	if o.project != "" {
		fmt.Fprintf(&b, " --account=%s", o.project)
	}
	fmt.Fprintf(&b, " --job-name=%s_%s", sess.Owner, configID)
	if o.allocationTime != "" {
		fmt.Fprintf(&b, " --time=%s", o.allocationTime)
	}
	if o.exclusive {
		b.WriteString(" --exclusive")
	}
	if o.nbNodes > 0 {
		fmt.Fprintf(&b, " -N %d", o.nbNodes)
	}
	fmt.Fprintf(&b, " -c %d --gres=gpu:%d --mem=%d", o.nbCPUs, o.nbGPUs, o.memory)
	if o.reservation != "" {
		fmt.Fprintf(&b, " --reservation=%s", o.reservation)
	}
	return b.String()
}

var grantedJobIDPattern = regexp.MustCompile(`\d+`)

// parseSallocOutput reports whether stderr indicates a granted
// allocation, and if so the extracted job id (the first run of digits).
func parseSallocOutput(stderr string) (jobID string, granted bool) {
	if !strings.Contains(stderr, "Granted") {
		return "", false
	}
	match := grantedJobIDPattern.FindString(stderr)
	if match == "" {
		return "", false
	}
	return match, true
}

var (
	jobStatePattern  = regexp.MustCompile(`JobState=(\S+)`)
	batchHostPattern = regexp.MustCompile(`BatchHost=(\S+)`)
)

// parseScontrolShowJob extracts JobState and BatchHost from `scontrol
// show job` output. An empty hostname return indicates a cancelled or
// not-yet-scheduled job.
func parseScontrolShowJob(output, clusterNode string) string {
	stateMatch := jobStatePattern.FindStringSubmatch(output)
	if len(stateMatch) == 2 && stateMatch[1] == "CANCELLED" {
		return ""
	}
	hostMatch := batchHostPattern.FindStringSubmatch(output)
	if len(hostMatch) != 2 || hostMatch[1] == "" {
		return ""
	}
	return hostMatch[1] + clusterDomain(clusterNode)
}

// clusterDomain returns the domain part of a cluster entry node name:
// everything after the first '.'.
func clusterDomain(clusterNode string) string {
	idx := strings.IndexByte(clusterNode, '.')
	if idx == -1 {
		return ""
	}
	return clusterNode[idx:]
}

// buildStartScript assembles the shell program launched on the resolved
// compute host: module loads, environment, the formatted command line,
// and output redirection into the session's log files.
func buildStartScript(rc *resourceconfig.ResourceConfig, formattedRESTParams, extraParams, outFile, errFile string) string {
	var b strings.Builder
	b.WriteString("module purge; ")
	for _, m := range strings.Fields(rc.Modules) {
		fmt.Fprintf(&b, "module load %s; ", m)
	}
	for _, kv := range strings.Fields(rc.EnvironmentVariables) {
		fmt.Fprintf(&b, "%s ", kv)
	}
	fmt.Fprintf(&b, "%s %s %s > %s 2> %s &", rc.CommandLine, formattedRESTParams, extraParams, outFile, errFile)
	return b.String()
}

func logFileName(prefix, jobID, configID, stream string) string {
	return fmt.Sprintf("%s_%s_%s_%s", prefix, jobID, configID, stream)
}
