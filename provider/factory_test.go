package provider

import "testing"

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ollama default host", Config{Type: ProviderTypeOllama}, false},
		{"ollama explicit host", Config{Type: ProviderTypeOllama, BaseURL: "http://remote:11434"}, false},
		{"openai with key", Config{Type: ProviderTypeOpenAI, APIKey: "sk-test"}, false},
		{"openai without key", Config{Type: ProviderTypeOpenAI}, true},
		{"anthropic with key", Config{Type: ProviderTypeAnthropic, APIKey: "sk-ant-test"}, false},
		{"anthropic without key", Config{Type: ProviderTypeAnthropic}, true},
		{"unknown type", Config{Type: "bedrock"}, true},
		{"empty type", Config{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p == nil {
				t.Fatal("expected a provider")
			}
		})
	}
}
