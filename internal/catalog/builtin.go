package catalog

import "tutord/pkg/types"

// BuiltinDefaultID is the default entry of Builtin.
const BuiltinDefaultID = "tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf"

// Builtin returns the models shipped with the binary. A fresh slice is
// returned on every call. All entries are public GGUF files for the llama
// session runtime; interpreter models come from a catalog file.
func Builtin() []types.ModelDescriptor {
	return []types.ModelDescriptor{
		{
			Name:       "TinyLlama 1.1B Chat (Q4_K_M)",
			ID:         BuiltinDefaultID,
			URL:        "https://huggingface.co/TheBloke/TinyLlama-1.1B-Chat-v1.0-GGUF/resolve/main/tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf",
			LicenseURL: "https://www.apache.org/licenses/LICENSE-2.0",
			Backend:    types.BackendCPU,
			Runtime:    types.RuntimeSession,
			Params:     types.GenerationParams{Temperature: 0.7, TopK: 40, TopP: 0.9, MaxTokens: 512},
		},
		{
			Name:       "Qwen2.5 0.5B Instruct (Q4_K_M)",
			ID:         "qwen2.5-0.5b-instruct-q4_k_m.gguf",
			URL:        "https://huggingface.co/Qwen/Qwen2.5-0.5B-Instruct-GGUF/resolve/main/qwen2.5-0.5b-instruct-q4_k_m.gguf",
			LicenseURL: "https://www.apache.org/licenses/LICENSE-2.0",
			Backend:    types.BackendCPU,
			Runtime:    types.RuntimeSession,
			Params:     types.GenerationParams{Temperature: 0.7, TopK: 20, TopP: 0.8, MaxTokens: 512},
		},
	}
}
