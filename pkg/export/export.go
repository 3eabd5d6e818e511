// Package export projects a design state onto a deployment bundle: a
// docker-compose service descriptor plus the orchestrator's topology
// descriptor.
package export

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ravi-parthasarathy/drafter/pkg/pipeline"
)

// NotFound stands in for any stage or access point an edge refers to that
// cannot be resolved.
const NotFound = "<not found>"

// OrchestratorService is the fixed service key of the orchestrator.
const OrchestratorService = "orchestrator"

// File names inside the bundle.
const (
	ComposeFile = "docker-compose.yml"
	ConfigFile  = "config.yml"
)

// Options tunes the generated descriptors.
type Options struct {
	BasePort          int    // host port of the first stage
	ContainerPort     int    // port every stage serves on inside its container
	OrchestratorImage string // image of the orchestrator service
	ConfigPath        string // where the orchestrator expects config.yml
}

// DefaultOptions returns the options used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		BasePort:          8061,
		ContainerPort:     8061,
		OrchestratorImage: "sipgisr/grpc-orchestrator:latest",
		ConfigPath:        "/app/config.yml",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BasePort == 0 {
		o.BasePort = d.BasePort
	}
	if o.ContainerPort == 0 {
		o.ContainerPort = d.ContainerPort
	}
	if o.OrchestratorImage == "" {
		o.OrchestratorImage = d.OrchestratorImage
	}
	if o.ConfigPath == "" {
		o.ConfigPath = d.ConfigPath
	}
	return o
}

// ─── Descriptor shapes ────────────────────────────────────────────────────────

// ServiceDescriptor is the docker-compose.yml document.
type ServiceDescriptor struct {
	Version  string             `yaml:"version" json:"version" required:"true" enum:"3"`
	Services map[string]Service `yaml:"services" json:"services" required:"true"`
}

// Service is one docker-compose service.
type Service struct {
	Image       string            `yaml:"image" json:"image" required:"true"`
	Volumes     []ServiceVolume   `yaml:"volumes" json:"volumes" required:"true"`
	Environment map[string]string `yaml:"environment,omitempty" json:"environment,omitempty"`
	Ports       []string          `yaml:"ports,omitempty" json:"ports,omitempty" description:"host:container"`
}

// ServiceVolume is a long-form docker-compose volume.
type ServiceVolume struct {
	Type   string `yaml:"type" json:"type" required:"true" enum:"bind"`
	Source string `yaml:"source" json:"source" required:"true"`
	Target string `yaml:"target" json:"target" required:"true"`
}

// TopologyDescriptor is the config.yml document read by the orchestrator.
type TopologyDescriptor struct {
	Stages []TopologyStage `yaml:"stages" json:"stages" required:"true"`
	Links  []Link          `yaml:"links" json:"links" required:"true"`
}

// TopologyStage says where the orchestrator reaches one stage.
type TopologyStage struct {
	Name string `yaml:"name" json:"name" required:"true"`
	Host string `yaml:"host" json:"host" required:"true" description:"service key in docker-compose.yml"`
	Port int    `yaml:"port" json:"port" required:"true" minimum:"1" maximum:"65535"`
}

// Link routes the output of one stage method into another.
type Link struct {
	Source LinkEnd `yaml:"source" json:"source" required:"true"`
	Target LinkEnd `yaml:"target" json:"target" required:"true"`
}

// LinkEnd names a stage and the method field on it.
type LinkEnd struct {
	Stage string `yaml:"stage" json:"stage" required:"true"`
	Field string `yaml:"field" json:"field" required:"true"`
}

// Bundle is the pair of descriptors for one design.
type Bundle struct {
	Compose ServiceDescriptor
	Config  TopologyDescriptor
}

// ─── Projection ───────────────────────────────────────────────────────────────

// Build projects s onto a Bundle. It never fails: unresolvable references
// are written as NotFound.
func Build(s pipeline.State, opts Options) Bundle {
	opts = opts.withDefaults()
	b := Bundle{
		Compose: ServiceDescriptor{Version: "3", Services: make(map[string]Service)},
		Config:  TopologyDescriptor{Stages: []TopologyStage{}, Links: []Link{}},
	}

	hosts := make(map[string]string) // stage name → service key
	for i, st := range s.SortedStages() {
		host, seen := hosts[st.Name]
		if !seen {
			host = freeKey(b.Compose.Services, ServiceKey(st.Name))
			hosts[st.Name] = host
			b.Compose.Services[host] = stageService(s, st, opts.BasePort+i, opts.ContainerPort)
		}
		b.Config.Stages = append(b.Config.Stages, TopologyStage{
			Name: st.Name,
			Host: host,
			Port: opts.ContainerPort,
		})
	}

	b.Compose.Services[OrchestratorService] = Service{
		Image: opts.OrchestratorImage,
		Volumes: []ServiceVolume{{
			Type:   string(pipeline.VolumeBind),
			Source: "./" + ConfigFile,
			Target: opts.ConfigPath,
		}},
	}

	for _, e := range s.SortedEdges() {
		b.Config.Links = append(b.Config.Links, Link{
			Source: linkEnd(s, e.Responder),
			Target: linkEnd(s, e.Requester),
		})
	}
	return b
}

func stageService(s pipeline.State, st pipeline.Stage, hostPort, containerPort int) Service {
	svc := Service{
		Image:   NotFound,
		Volumes: make([]ServiceVolume, 0, len(st.Volumes)),
		Ports:   []string{fmt.Sprintf("%d:%d", hostPort, containerPort)},
	}
	if a, ok := s.Assets[st.AssetID]; ok {
		svc.Image = a.Image
	}
	for _, v := range st.Volumes {
		svc.Volumes = append(svc.Volumes, ServiceVolume{Type: string(v.Type), Source: v.Source, Target: v.Target})
	}
	return svc
}

func linkEnd(s pipeline.State, ep pipeline.Endpoint) LinkEnd {
	end := LinkEnd{Stage: NotFound, Field: NotFound}
	st, ok := s.Stages[ep.StageID]
	if !ok {
		return end
	}
	end.Stage = st.Name
	if ap, ok := st.AccessPoint(ep.AccessPointID); ok {
		end.Field = ap.Name
	}
	return end
}

// freeKey returns key, or key-2, key-3 and so on when distinct stage names
// slug to the same key.
func freeKey(services map[string]Service, key string) string {
	candidate := key
	for n := 2; ; n++ {
		if _, taken := services[candidate]; !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", key, n)
	}
}

// ServiceKey slugs a stage name into a DNS-safe service key: lower case,
// with every run of other characters collapsed to "-". The orchestrator's
// key is reserved.
func ServiceKey(name string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	key := strings.TrimSuffix(sb.String(), "-")
	switch key {
	case "":
		return "stage"
	case OrchestratorService:
		return "stage-" + key
	}
	return key
}
