package main

const configTemplate = `# {{ index .Help "model" }}
default-model: {{ .Config.Model }}
# {{ index .Help "roles" }}
roles:
  "default": []
  # Example, a role called ` + "`shell`" + `:
  # shell:
  #   - you are a shell expert
  #   - you do not explain anything
  #   - you simply output one liners to solve the problems you're asked
# {{ index .Help "role" }}
role: "default"
# {{ index .Help "quiet" }}
quiet: false
# {{ index .Help "temp" }}
temp: {{ .Config.Temperature }}
# {{ index .Help "topp" }}
topp: {{ .Config.TopP }}
# {{ index .Help "stop" }}
stop: []
# {{ index .Help "choices" }}
# choices: 1
# {{ index .Help "max-rounds" }}
max-rounds: {{ .Config.MaxRounds }}
# {{ index .Help "inject-context" }}
inject-context: false
# {{ index .Help "max-retries" }}
max-retries: {{ .Config.MaxRetries }}
# {{ index .Help "request-timeout" }}
request-timeout: {{ .Config.RequestTimeout }}
# {{ index .Help "max-tokens" }}
# max-tokens: 100
# {{ index .Help "log-level" }}
log-level: {{ .Config.LogLevel }}
# {{ index .Help "mcp-servers" }}
mcp-servers:
  # Example: GitHub MCP via Docker:
  # github:
  #   command: docker
  #   env:
  #     - GITHUB_PERSONAL_ACCESS_TOKEN=xxxyyy
  #   args:
  #     - run
  #     - "-i"
  #     - "--rm"
  #     - "-e"
  #     - GITHUB_PERSONAL_ACCESS_TOKEN
  #     - "ghcr.io/github/github-mcp-server"
# {{ index .Help "mcp-timeout" }}
mcp-timeout: {{ .Config.MCPTimeout }}
# {{ index .Help "mcp-cache" }}
mcp-cache: {{ .Config.MCPCache }}
# {{ index .Help "apis" }}
apis:
  openai:
    base-url: https://api.openai.com/v1
    api-key:
    api-key-env: OPENAI_API_KEY
    models:
      gpt-4o:
        aliases: ["4o"]
      gpt-4o-mini:
        aliases: ["mini"]
      gpt-4.1:
        aliases: ["4.1"]
  ollama:
    # Talks to Ollama's native chat API
    base-url: http://localhost:11434
    type: ollama
    models:
      "llama3.2:latest":
        aliases: ["llama3.2"]
      "qwen2.5:latest":
        aliases: ["qwen"]
  localai:
    # LocalAI setup instructions: https://github.com/go-skynet/LocalAI#example-use-gpt4all-j-model
    base-url: http://localhost:8080/v1
    models:
      ggml-gpt4all-j:
        aliases: ["local", "4all"]
  azure:
    # Set type to 'azure-ad' to use Active Directory
    # Azure OpenAI setup: https://learn.microsoft.com/en-us/azure/cognitive-services/openai/how-to/create-resource
    base-url: https://YOUR_RESOURCE_NAME.openai.azure.com
    type: azure-ad
    api-key:
    api-key-env: AZURE_OPENAI_KEY
    models:
      gpt-4o:
        aliases: ["az4o"]
`
