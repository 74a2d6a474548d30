package plans

import (
	"context"
	"errors"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

type inMemSource struct {
	plans []Plan
}

// NewInMemSource returns a Source over a copy of plans.
func NewInMemSource(plans ...Plan) Source {
	return &inMemSource{plans: slices.Clone(plans)}
}

func (s *inMemSource) Load(context.Context) ([]Plan, error) {
	return slices.Clone(s.plans), nil
}

// File is the YAML layout of a plan table file.
type File struct {
	Currency           string `yaml:"currency"`
	UnlimitedThreshold int64  `yaml:"unlimited_threshold"`
	Plans              []Plan `yaml:"plans"`
}

type yamlSource struct {
	path string
}

// NewYAMLSource reads plans from a YAML file on every Load.
func NewYAMLSource(path string) Source {
	return &yamlSource{path: path}
}

func (s *yamlSource) Load(context.Context) ([]Plan, error) {
	f, err := ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	return f.Plans, nil
}

// ReadFile parses a plan table file.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, errors.Join(ErrLoadPlans, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, errors.Join(ErrLoadPlans, err)
	}
	if len(f.Plans) == 0 {
		return File{}, errors.Join(ErrLoadPlans, errors.New("no plans defined"))
	}
	return f, nil
}

// Marshal renders plans in the file layout, used by the "plans" command.
func Marshal(currency string, threshold int64, plans []Plan) ([]byte, error) {
	return yaml.Marshal(File{Currency: currency, UnlimitedThreshold: threshold, Plans: plans})
}
