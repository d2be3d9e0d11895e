package backend

import (
	"github.com/vk/taproot/internal/pipeline"
	"github.com/vk/taproot/internal/step"
)

// GitLabImageConfig pins the job image. PullPolicy is optional; when empty
// only the image name is emitted.
type GitLabImageConfig struct {
	Name       string `yaml:"name"`
	PullPolicy string `yaml:"pull_policy"`
}

// GitLabCacheConfig is emitted verbatim as the shared cache section.
type GitLabCacheConfig struct {
	Key    string   `yaml:"key"`
	Paths  []string `yaml:"paths"`
	Policy string   `yaml:"policy"`
}

// GitLabArtifactsConfig shapes the per-job artifacts block. Paths default
// to the step's own artifact directory when unset.
type GitLabArtifactsConfig struct {
	Paths    []string `yaml:"paths"`
	ExpireIn string   `yaml:"expire_in"`
	When     string   `yaml:"when"`
}

// GitLabJobConfig holds settings applied to every generated job.
type GitLabJobConfig struct {
	Stage        string           `yaml:"stage"`
	Tags         []string         `yaml:"tags"`
	Timeout      string           `yaml:"timeout"`
	Retry        int              `yaml:"retry"`
	AllowFailure bool             `yaml:"allow_failure"`
	Rules        []map[string]any `yaml:"rules"`
	BeforeScript []string         `yaml:"before_script"`
	AfterScript  []string         `yaml:"after_script"`
}

// GitLabConfig configures the GitLab CI emitter.
type GitLabConfig struct {
	DataDir   string                `yaml:"dataDir"`
	Image     GitLabImageConfig     `yaml:"image"`
	Stages    []string              `yaml:"stages"`
	Variables map[string]string     `yaml:"variables"`
	Cache     GitLabCacheConfig     `yaml:"cache"`
	Artifacts GitLabArtifactsConfig `yaml:"artifacts"`
	// DefaultJob applies to every generated step job.
	DefaultJob  GitLabJobConfig `yaml:"defaultJob"`
	Middlewares []string        `yaml:"middlewares"`
}

// GitLab renders a .gitlab-ci.yml document: one job per step, ordered by
// `needs` edges rather than stages, so independent branches run in
// parallel without stage barriers.
type GitLab struct {
	cfg GitLabConfig
}

// NewGitLab builds the emitter from merged values (section "gitlab").
func NewGitLab(v Values) (*GitLab, error) {
	cfg := GitLabConfig{
		DataDir: "data",
		Image:   GitLabImageConfig{Name: "ghcr.io/vk/taproot:latest"},
		Stages:  []string{"run"},
	}
	if err := v.DecodeSection("gitlab", &cfg); err != nil {
		return nil, &ConfigError{Backend: "gitlab", Reason: err.Error()}
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if len(cfg.Stages) == 0 {
		cfg.Stages = []string{"run"}
	}
	if cfg.DefaultJob.Stage == "" {
		cfg.DefaultJob.Stage = cfg.Stages[len(cfg.Stages)-1]
	}
	return &GitLab{cfg: cfg}, nil
}

// Name implements Backend.
func (b *GitLab) Name() string { return "gitlab" }

// Generate implements Backend.
func (b *GitLab) Generate(r *pipeline.Resolved) (string, error) {
	root := newOrderedMap()
	root.set("stages", b.cfg.Stages)
	root.set("image", b.image())
	if len(b.cfg.Variables) > 0 {
		root.set("variables", b.cfg.Variables)
	}
	if len(b.cfg.Cache.Paths) > 0 {
		root.set("cache", b.cache())
	}
	for _, d := range r.Steps() {
		root.set(d.Name(), b.job(r, d))
	}
	return marshalDocument(root)
}

func (b *GitLab) image() any {
	if b.cfg.Image.PullPolicy == "" {
		return b.cfg.Image.Name
	}
	return newOrderedMap().
		set("name", b.cfg.Image.Name).
		set("pull_policy", b.cfg.Image.PullPolicy)
}

func (b *GitLab) cache() *orderedMap {
	cache := newOrderedMap()
	if b.cfg.Cache.Key != "" {
		cache.set("key", b.cfg.Cache.Key)
	}
	cache.set("paths", b.cfg.Cache.Paths)
	if b.cfg.Cache.Policy != "" {
		cache.set("policy", b.cfg.Cache.Policy)
	}
	return cache
}

// job renders one step. Dependency order is expressed through needs with
// the producers' artifacts pulled into the workspace.
func (b *GitLab) job(r *pipeline.Resolved, d *step.Definition) *orderedMap {
	jc := b.cfg.DefaultJob
	job := newOrderedMap().set("stage", jc.Stage)
	if len(jc.Tags) > 0 {
		job.set("tags", jc.Tags)
	}

	deps := r.Dependencies(d)
	if len(deps) > 0 {
		var needs []*orderedMap
		for _, dep := range deps {
			needs = append(needs, newOrderedMap().
				set("job", dep.Name()).
				set("artifacts", true))
		}
		job.set("needs", needs)
	} else {
		// An explicit empty needs list lets the job start immediately
		// instead of waiting for earlier stages.
		job.set("needs", []string{})
	}

	script := []string{runCommand(r, d, b.cfg.DataDir, b.cfg.Middlewares)}
	if len(jc.BeforeScript) > 0 {
		job.set("before_script", jc.BeforeScript)
	}
	job.set("script", script)
	if len(jc.AfterScript) > 0 {
		job.set("after_script", jc.AfterScript)
	}

	job.set("artifacts", b.jobArtifacts(d))
	if jc.Timeout != "" {
		job.set("timeout", jc.Timeout)
	}
	if jc.Retry > 0 {
		job.set("retry", jc.Retry)
	}
	if jc.AllowFailure {
		job.set("allow_failure", true)
	}
	if len(jc.Rules) > 0 {
		job.set("rules", jc.Rules)
	}
	return job
}

func (b *GitLab) jobArtifacts(d *step.Definition) *orderedMap {
	paths := b.cfg.Artifacts.Paths
	if len(paths) == 0 {
		paths = []string{artifactPath(b.cfg.DataDir, d)}
	}
	artifacts := newOrderedMap().set("paths", paths)
	if b.cfg.Artifacts.ExpireIn != "" {
		artifacts.set("expire_in", b.cfg.Artifacts.ExpireIn)
	}
	if b.cfg.Artifacts.When != "" {
		artifacts.set("when", b.cfg.Artifacts.When)
	}
	return artifacts
}
