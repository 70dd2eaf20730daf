package pipeline

import (
	"github.com/zen-systems/stageflow/pkg/schema"
)

// Definition is the static declaration a graph is built from: the stages,
// the field names supplied externally, and the shape of the final record.
type Definition struct {
	Name           string             `yaml:"name"`
	Description    string             `yaml:"description,omitempty"`
	Inputs         []string           `yaml:"inputs"`
	Stages         []*Stage           `yaml:"stages"`
	Output         *schema.Definition `yaml:"output"`
	DefaultAdapter string             `yaml:"default_adapter,omitempty"`
	DefaultModel   string             `yaml:"default_model,omitempty"`
}

// Graph is an immutable directed acyclic graph of stages with resolved
// data dependencies and a topological layering. Stages in the same layer
// have no dependency between them and may run concurrently; the layering
// is the scheduling contract the executor consumes.
type Graph struct {
	def       *Definition
	producers map[string]*Stage   // output field -> producing stage; absent = external
	consumers map[string][]*Stage // field -> stages that require it
	layers    [][]*Stage
}

// Build resolves every stage input to exactly one producer and computes
// the topological layering. Ambiguous or unresolved fields and cycles
// fail with a GraphError naming the offending field.
func Build(def *Definition) (*Graph, error) {
	if def == nil || def.Name == "" {
		return nil, &GraphError{Pipeline: "", Reason: "pipeline name is required"}
	}
	if len(def.Stages) == 0 {
		return nil, &GraphError{Pipeline: def.Name, Reason: "at least one stage is required"}
	}
	if def.Output == nil {
		return nil, &GraphError{Pipeline: def.Name, Reason: "output schema is required"}
	}
	if err := def.Output.Validate(); err != nil {
		return nil, &GraphError{Pipeline: def.Name, Reason: err.Error()}
	}

	external := make(map[string]struct{}, len(def.Inputs))
	for _, name := range def.Inputs {
		external[name] = struct{}{}
	}

	stageNames := make(map[string]struct{}, len(def.Stages))
	producers := make(map[string]*Stage)
	for _, stage := range def.Stages {
		if err := stage.validate(); err != nil {
			return nil, &GraphError{Pipeline: def.Name, Stage: stage.Name, Reason: err.Error()}
		}
		if _, ok := stageNames[stage.Name]; ok {
			return nil, &GraphError{Pipeline: def.Name, Stage: stage.Name, Reason: "duplicate stage name"}
		}
		stageNames[stage.Name] = struct{}{}

		// Pipeline-level defaults apply to stages without an override.
		if stage.Adapter == "" {
			stage.Adapter = def.DefaultAdapter
		}
		if stage.Model == "" {
			stage.Model = def.DefaultModel
		}

		for _, field := range stage.Outputs {
			if _, ok := external[field.Name]; ok {
				return nil, &GraphError{Pipeline: def.Name, Stage: stage.Name, Field: field.Name,
					Reason: "produced by a stage and supplied externally"}
			}
			if prev, ok := producers[field.Name]; ok {
				return nil, &GraphError{Pipeline: def.Name, Stage: stage.Name, Field: field.Name,
					Reason: "also produced by stage " + prev.Name}
			}
			producers[field.Name] = stage
		}
	}

	consumers := make(map[string][]*Stage)
	for _, stage := range def.Stages {
		for _, input := range stage.Inputs {
			_, fromStage := producers[input]
			_, fromExternal := external[input]
			if !fromStage && !fromExternal {
				return nil, &GraphError{Pipeline: def.Name, Stage: stage.Name, Field: input,
					Reason: "no producer resolves this input"}
			}
			if p := producers[input]; p == stage {
				return nil, &GraphError{Pipeline: def.Name, Stage: stage.Name, Field: input,
					Reason: "stage consumes its own output"}
			}
			consumers[input] = append(consumers[input], stage)
		}
	}

	for _, field := range def.Output.Fields {
		_, fromStage := producers[field.Name]
		_, fromExternal := external[field.Name]
		if !fromStage && !fromExternal {
			return nil, &GraphError{Pipeline: def.Name, Field: field.Name,
				Reason: "output schema field has no producer"}
		}
	}

	layers, err := layerStages(def, producers, external)
	if err != nil {
		return nil, err
	}

	return &Graph{def: def, producers: producers, consumers: consumers, layers: layers}, nil
}

// layerStages computes the topological layering: layer 0 holds stages
// whose inputs are all external; layer k holds stages whose remaining
// inputs are satisfied by layers < k. Stages left unplaced form a cycle.
func layerStages(def *Definition, producers map[string]*Stage, external map[string]struct{}) ([][]*Stage, error) {
	placed := make(map[string]int, len(def.Stages))
	var layers [][]*Stage

	remaining := append([]*Stage(nil), def.Stages...)
	for len(remaining) > 0 {
		var layer []*Stage
		var next []*Stage

		for _, stage := range remaining {
			ready := true
			for _, input := range stage.Inputs {
				if _, ok := external[input]; ok {
					continue
				}
				producer := producers[input]
				if _, done := placed[producer.Name]; !done {
					ready = false
					break
				}
			}
			if ready {
				layer = append(layer, stage)
			} else {
				next = append(next, stage)
			}
		}

		if len(layer) == 0 {
			return nil, &GraphError{Pipeline: def.Name, Stage: next[0].Name,
				Reason: "dependency cycle detected"}
		}

		for _, stage := range layer {
			placed[stage.Name] = len(layers)
		}
		layers = append(layers, layer)
		remaining = next
	}

	return layers, nil
}

// Definition returns the definition the graph was built from.
func (g *Graph) Definition() *Definition {
	return g.def
}

// Layers returns the scheduling layers in execution order.
func (g *Graph) Layers() [][]*Stage {
	return g.layers
}

// Producer returns the stage producing a field, or nil when the field is
// supplied externally.
func (g *Graph) Producer(field string) *Stage {
	return g.producers[field]
}

// requiredDownstream reports whether any stage consumes the field.
func (g *Graph) requiredDownstream(field string) bool {
	return len(g.consumers[field]) > 0
}
