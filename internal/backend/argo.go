package backend

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vk/taproot/internal/pipeline"
	"github.com/vk/taproot/internal/step"
)

// dnsLabel is the shape Kubernetes requires of workflow and task names.
var dnsLabel = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// ArgoS3Config declares the artifact repository tasks pass artifacts
// through. Bucket and endpoint are mandatory: without a repository the DAG
// has no way to move artifacts between pods.
type ArgoS3Config struct {
	Bucket   string `yaml:"bucket"`
	Endpoint string `yaml:"endpoint"`
	// SecretName is only referenced by name; the emitter never touches
	// credential material.
	SecretName string `yaml:"secretName"`
}

// ArgoConfig configures the Kubernetes-workflow emitter.
type ArgoConfig struct {
	PipelineName   string `yaml:"pipelineName"`
	Namespace      string `yaml:"namespace"`
	Image          string `yaml:"image"`
	ServiceAccount string `yaml:"serviceAccount"`
	// Schedule switches the output from a one-shot Workflow to a
	// CronWorkflow when non-empty.
	Schedule string       `yaml:"schedule"`
	DataDir  string       `yaml:"dataDir"`
	S3       ArgoS3Config `yaml:"s3"`
	// SecurityContext, Resources and NodeSelector are passed through to
	// the task containers untouched; the emitter does not interpret them.
	SecurityContext map[string]any    `yaml:"securityContext"`
	Resources       map[string]any    `yaml:"resources"`
	NodeSelector    map[string]string `yaml:"nodeSelector"`
	Middlewares     []string          `yaml:"middlewares"`
}

// Argo renders an Argo Workflows manifest: a DAG with one task per step,
// task dependencies matching the graph edges, and S3 artifact declarations
// carrying outputs between tasks.
type Argo struct {
	cfg ArgoConfig
}

// NewArgo builds the emitter from merged values. The "argo" section is
// required, as are the S3 bucket and endpoint inside it.
func NewArgo(v Values) (*Argo, error) {
	if !v.Has("argo") {
		return nil, &ConfigError{Backend: "argo", Reason: "values must contain an 'argo' section"}
	}
	cfg := ArgoConfig{
		PipelineName: "taproot",
		Image:        "ghcr.io/vk/taproot:latest",
		DataDir:      "data",
	}
	if err := v.DecodeSection("argo", &cfg); err != nil {
		return nil, &ConfigError{Backend: "argo", Reason: err.Error()}
	}
	if cfg.S3.Bucket == "" {
		return nil, &ConfigError{Backend: "argo", Reason: "s3.bucket is mandatory"}
	}
	if cfg.S3.Endpoint == "" {
		return nil, &ConfigError{Backend: "argo", Reason: "s3.endpoint is mandatory"}
	}
	if !dnsLabel.MatchString(cfg.PipelineName) || len(cfg.PipelineName) > 63 {
		return nil, &ConfigError{Backend: "argo", Reason: fmt.Sprintf("pipelineName %q is not a valid DNS label", cfg.PipelineName)}
	}
	return &Argo{cfg: cfg}, nil
}

// Name implements Backend.
func (b *Argo) Name() string { return "argo" }

// Generate implements Backend.
func (b *Argo) Generate(r *pipeline.Resolved) (string, error) {
	spec := b.workflowSpec(r)

	root := newOrderedMap()
	root.set("apiVersion", "argoproj.io/v1alpha1")
	if b.cfg.Schedule != "" {
		root.set("kind", "CronWorkflow")
		root.set("metadata", b.metadata())
		cronSpec := newOrderedMap().
			set("schedule", b.cfg.Schedule).
			set("concurrencyPolicy", "Replace").
			set("workflowSpec", spec)
		root.set("spec", cronSpec)
	} else {
		root.set("kind", "Workflow")
		root.set("metadata", b.metadata())
		root.set("spec", spec)
	}
	return marshalDocument(root)
}

func (b *Argo) metadata() *orderedMap {
	meta := newOrderedMap().set("generateName", b.cfg.PipelineName+"-")
	if b.cfg.Namespace != "" {
		meta.set("namespace", b.cfg.Namespace)
	}
	return meta
}

func (b *Argo) workflowSpec(r *pipeline.Resolved) *orderedMap {
	entrypoint := b.cfg.PipelineName + "-dag"

	var tasks []*orderedMap
	templates := []*orderedMap{nil} // placeholder for the DAG template
	for _, d := range r.Steps() {
		tasks = append(tasks, b.task(r, d))
		templates = append(templates, b.stepTemplate(r, d))
	}
	dag := newOrderedMap().
		set("name", entrypoint).
		set("dag", newOrderedMap().set("tasks", tasks))
	templates[0] = dag

	spec := newOrderedMap().set("entrypoint", entrypoint)
	if b.cfg.ServiceAccount != "" {
		spec.set("serviceAccountName", b.cfg.ServiceAccount)
	}
	if len(b.cfg.NodeSelector) > 0 {
		spec.set("nodeSelector", b.cfg.NodeSelector)
	}
	spec.set("templates", templates)
	return spec
}

// task is the DAG node for one step: dependencies are task names and every
// incoming edge becomes an artifact argument taken from the producer task.
func (b *Argo) task(r *pipeline.Resolved, d *step.Definition) *orderedMap {
	task := newOrderedMap().
		set("name", taskName(d)).
		set("template", templateName(d))

	deps := r.Dependencies(d)
	if len(deps) > 0 {
		var names []string
		var artifacts []*orderedMap
		for _, dep := range deps {
			names = append(names, taskName(dep))
			artifacts = append(artifacts, newOrderedMap().
				set("name", "result-"+taskName(dep)).
				set("from", fmt.Sprintf("{{tasks.%s.outputs.artifacts.result}}", taskName(dep))))
		}
		task.set("dependencies", names)
		task.set("arguments", newOrderedMap().set("artifacts", artifacts))
	}
	return task
}

// stepTemplate is the container template a task executes. Output artifacts
// are declared against the S3 repository, keyed per pipeline, workflow run
// and step, never as local paths.
func (b *Argo) stepTemplate(r *pipeline.Resolved, d *step.Definition) *orderedMap {
	var inputArtifacts []*orderedMap
	for _, dep := range r.Dependencies(d) {
		inputArtifacts = append(inputArtifacts, newOrderedMap().
			set("name", "result-"+taskName(dep)).
			set("path", "/tmp/inputs/"+dep.Name()))
	}

	container := newOrderedMap().
		set("image", b.cfg.Image).
		set("command", []string{"taproot"}).
		set("args", b.args(r, d))
	if len(b.cfg.Resources) > 0 {
		container.set("resources", b.cfg.Resources)
	}
	if len(b.cfg.SecurityContext) > 0 {
		container.set("securityContext", b.cfg.SecurityContext)
	}

	outputArtifact := newOrderedMap().
		set("name", "result").
		set("path", "/tmp/outputs/"+d.Name()).
		set("s3", b.s3Key(d))

	tmpl := newOrderedMap().set("name", templateName(d))
	if len(inputArtifacts) > 0 {
		tmpl.set("inputs", newOrderedMap().set("artifacts", inputArtifacts))
	}
	tmpl.set("container", container)
	tmpl.set("outputs", newOrderedMap().set("artifacts", []*orderedMap{outputArtifact}))
	return tmpl
}

func (b *Argo) s3Key(d *step.Definition) *orderedMap {
	s3 := newOrderedMap().
		set("endpoint", b.cfg.S3.Endpoint).
		set("bucket", b.cfg.S3.Bucket).
		set("key", fmt.Sprintf("%s/{{workflow.name}}/%s", b.cfg.PipelineName, d.Name()))
	if b.cfg.S3.SecretName != "" {
		s3.set("accessKeySecret", newOrderedMap().set("name", b.cfg.S3.SecretName).set("key", "accesskey"))
		s3.set("secretKeySecret", newOrderedMap().set("name", b.cfg.S3.SecretName).set("key", "secretkey"))
	}
	return s3
}

// args renders the in-container run command with inputs mapped to the
// artifact mount points instead of data-dir paths.
func (b *Argo) args(r *pipeline.Resolved, d *step.Definition) []string {
	args := []string{"run", d.Name()}
	for _, dep := range r.Dependencies(d) {
		args = append(args, "--input", "/tmp/inputs/"+dep.Name())
	}
	args = append(args, "--output", "/tmp/outputs/"+d.Name())
	if len(b.cfg.Middlewares) > 0 {
		args = append(args, "--middlewares", strings.Join(b.cfg.Middlewares, ","))
	}
	return args
}

func taskName(d *step.Definition) string {
	return strings.ToLower(d.Name())
}

func templateName(d *step.Definition) string {
	return "run-" + taskName(d)
}
