// internal/layerspec/layerspec.go
package layerspec

import "fmt"

// MaskType selects the attention masking scheme applied by the core
// attention submodule.
type MaskType string

// MaskCausal masks future positions so each token may only attend to
// itself and earlier tokens.
const MaskCausal MaskType = "causal"

// Model families with a built-in layer spec.
const (
	FamilyFalcon  = "falcon"
	FamilyGPTNext = "gptnext"
)

// SelfAttentionSubmodules names the implementations filling the three
// slots of a self-attention block: the fused QKV projection, the core
// attention computation, and the output projection.
type SelfAttentionSubmodules struct {
	LinearQKV     ModuleID `json:"linear_qkv"`
	CoreAttention ModuleID `json:"core_attention"`
	LinearProj    ModuleID `json:"linear_proj"`
}

// SelfAttentionSpec configures the self-attention block of a layer.
type SelfAttentionSpec struct {
	Module     ModuleID                `json:"module"`
	MaskType   MaskType                `json:"mask_type"`
	Submodules SelfAttentionSubmodules `json:"submodules"`
}

// MLPSubmodules names the implementations filling the two projection
// slots of an MLP block.
type MLPSubmodules struct {
	LinearFC1 ModuleID `json:"linear_fc1"`
	LinearFC2 ModuleID `json:"linear_fc2"`
}

// MLPSpec configures the MLP block of a layer.
type MLPSpec struct {
	Module     ModuleID      `json:"module"`
	Submodules MLPSubmodules `json:"submodules"`
}

// LayerSpec is the declarative assembly of one decoder layer. Slot order
// mirrors the forward pass: input norm, self-attention, its bias/dropout/add
// fusion, pre-MLP norm, MLP, and the closing fusion. PostSelfAttnLayerNorm
// is optional and only populated by families that normalize the attention
// output separately from the residual stream.
type LayerSpec struct {
	Family                string            `json:"family"`
	Module                ModuleID          `json:"module"`
	InputLayerNorm        ModuleID          `json:"input_layernorm"`
	SelfAttention         SelfAttentionSpec `json:"self_attention"`
	SelfAttnBDA           ModuleID          `json:"self_attn_bda"`
	PostSelfAttnLayerNorm ModuleID          `json:"post_self_attn_layernorm,omitempty"`
	PreMLPLayerNorm       ModuleID          `json:"pre_mlp_layernorm"`
	MLP                   MLPSpec           `json:"mlp"`
	MLPBDA                ModuleID          `json:"mlp_bda"`
}

// baseLayerSpec is the assembly shared by every supported family.
func baseLayerSpec(family string) LayerSpec {
	return LayerSpec{
		Family:         family,
		Module:         LookupDecoderLayer,
		InputLayerNorm: FusedLayerNorm,
		SelfAttention: SelfAttentionSpec{
			Module:   SelfAttention,
			MaskType: MaskCausal,
			Submodules: SelfAttentionSubmodules{
				LinearQKV:     ColumnParallelLinear,
				CoreAttention: DotProductAttention,
				LinearProj:    RowParallelLinear,
			},
		},
		SelfAttnBDA:     BiasDropoutAdd,
		PreMLPLayerNorm: FusedLayerNorm,
		MLP: MLPSpec{
			Module: GatedMLP,
			Submodules: MLPSubmodules{
				LinearFC1: ColumnParallelLinear,
				LinearFC2: RowParallelLinear,
			},
		},
		MLPBDA: BiasDropoutAdd,
	}
}

// FalconLayerSpec returns the decoder-layer spec for the falcon family.
// Older falcon variants carry a second layernorm applied to the attention
// output before the MLP branch, which the converted checkpoints still
// expect, so the slot is always populated here.
func FalconLayerSpec() LayerSpec {
	spec := baseLayerSpec(FamilyFalcon)
	spec.PostSelfAttnLayerNorm = FusedLayerNorm
	return spec
}

// GPTNextLayerSpec returns the decoder-layer spec for the gptnext family.
func GPTNextLayerSpec() LayerSpec {
	return baseLayerSpec(FamilyGPTNext)
}

// ForFamily returns the built-in layer spec for a model family.
func ForFamily(family string) (LayerSpec, error) {
	switch family {
	case FamilyFalcon:
		return FalconLayerSpec(), nil
	case FamilyGPTNext:
		return GPTNextLayerSpec(), nil
	default:
		return LayerSpec{}, fmt.Errorf("layerspec: no layer spec for model family %q", family)
	}
}

// Families lists the model families with a built-in layer spec.
func Families() []string {
	return []string{FamilyFalcon, FamilyGPTNext}
}

// loraTargets maps adapter target-module names onto the spec slot they
// adapt. Only the fused QKV projection is adaptable today.
var loraTargets = map[string]string{
	"attn_qkv": "self_attention.linear_qkv",
}

// IsLoRATarget reports whether a LoRA adapter target-module name maps
// onto a slot the runtime can adapt.
func IsLoRATarget(name string) bool {
	_, ok := loraTargets[name]
	return ok
}

// LoRATargets lists the supported adapter target-module names.
func LoRATargets() []string {
	return []string{"attn_qkv"}
}
