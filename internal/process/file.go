package process

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the on-disk catalogue of webhook processes.
//
//	processes:
//	  - id: ndvi
//	    title: NDVI composite
//	    outputs: {raster: null}
//	    webhook:
//	      url: http://worker:9000/ndvi
//	      secret: s3cret
//	      timeout: 2m
type File struct {
	Processes []FileEntry `yaml:"processes"`
}

type FileEntry struct {
	ID          string         `yaml:"id"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Outputs     map[string]any `yaml:"outputs"`
	Webhook     struct {
		URL     string `yaml:"url"`
		Secret  string `yaml:"secret"`
		Timeout string `yaml:"timeout"`
	} `yaml:"webhook"`
}

func LoadFile(path string) ([]Process, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read processes file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) ([]Process, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode processes file: %w", err)
	}

	out := make([]Process, 0, len(f.Processes))
	var err error
	for i, e := range f.Processes {
		if e.ID == "" {
			return nil, fmt.Errorf("process %d: id is required", i+1)
		}
		if e.Webhook.URL == "" {
			return nil, fmt.Errorf("process %q: webhook.url is required", e.ID)
		}

		var timeout time.Duration
		if e.Webhook.Timeout != "" {
			timeout, err = time.ParseDuration(e.Webhook.Timeout)
			if err != nil {
				return nil, fmt.Errorf("process %q: webhook.timeout: %w", e.ID, err)
			}
		}

		def := Definition{ID: e.ID, Title: e.Title, Description: e.Description}
		if def.Title == "" {
			def.Title = e.ID
		}
		if e.Outputs != nil {
			def.Outputs, err = json.Marshal(e.Outputs)
			if err != nil {
				return nil, fmt.Errorf("process %q: outputs: %w", e.ID, err)
			}
		}

		out = append(out, NewWebhook(def, e.Webhook.URL, e.Webhook.Secret, timeout))
	}
	return out, nil
}
