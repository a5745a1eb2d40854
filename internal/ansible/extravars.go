package ansible

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/imamik/testnet-deploy/internal/deployment"
)

// archiveBaseURL is where binaries built from a branch are published.
const archiveBaseURL = "https://sn-node.s3.eu-west-2.amazonaws.com"

type extraVar struct {
	key    string
	value  string
	list   []string
	isList bool
}

// ExtraVarsBuilder renders a flat JSON object of string and string-list
// values. Keys are emitted in insertion order, so identical calls always
// produce identical text:
//
//	{ "provider": "hetzner", "hosts": ["a", "b"] }
type ExtraVarsBuilder struct {
	vars []extraVar
}

// NewExtraVarsBuilder returns an empty builder.
func NewExtraVarsBuilder() *ExtraVarsBuilder {
	return &ExtraVarsBuilder{}
}

// Add sets a string variable. Adding an existing key replaces its value in
// place.
func (b *ExtraVarsBuilder) Add(key, value string) *ExtraVarsBuilder {
	b.put(extraVar{key: key, value: value})
	return b
}

// AddList sets a list variable.
func (b *ExtraVarsBuilder) AddList(key string, values []string) *ExtraVarsBuilder {
	b.put(extraVar{key: key, list: append([]string(nil), values...), isList: true})
	return b
}

// AddEnvList sets key to a comma separated KEY=VALUE string.
func (b *ExtraVarsBuilder) AddEnvList(key string, env []deployment.EnvVar) *ExtraVarsBuilder {
	pairs := make([]string, 0, len(env))
	for _, e := range env {
		pairs = append(pairs, e.Key+"="+e.Value)
	}
	return b.Add(key, strings.Join(pairs, ","))
}

func (b *ExtraVarsBuilder) put(v extraVar) {
	for i := range b.vars {
		if b.vars[i].key == v.key {
			b.vars[i] = v
			return
		}
	}
	b.vars = append(b.vars, v)
}

// Len returns the number of variables set.
func (b *ExtraVarsBuilder) Len() int { return len(b.vars) }

// Build renders the document. An empty builder renders as the empty string,
// which callers treat as "no extra vars".
func (b *ExtraVarsBuilder) Build() string {
	if len(b.vars) == 0 {
		return ""
	}
	parts := make([]string, 0, len(b.vars))
	for _, v := range b.vars {
		if !v.isList {
			parts = append(parts, fmt.Sprintf("%s: %s", quote(v.key), quote(v.value)))
			continue
		}
		items := make([]string, 0, len(v.list))
		for _, item := range v.list {
			items = append(items, quote(item))
		}
		parts = append(parts, fmt.Sprintf("%s: [%s]", quote(v.key), strings.Join(items, ", ")))
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// quote renders s as a JSON string without HTML escaping, so URLs stay
// readable.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// addBinaries points nodes at either released versions or the archive built
// from a branch for this deployment.
func (b *ExtraVarsBuilder) addBinaries(name string, bin deployment.BinaryOption) {
	if bin.BuildFromSource() {
		b.Add("node_archive_url", archiveURL(bin, "antnode", name))
		b.Add("antctl_archive_url", archiveURL(bin, "antctl", name))
		return
	}
	if bin.NodeVersion != "" {
		b.Add("version", bin.NodeVersion)
	}
	if bin.AntctlVersion != "" {
		b.Add("antctl_version", bin.AntctlVersion)
	}
}

// addBuildVars carries the repository coordinates to the build VM.
func (b *ExtraVarsBuilder) addBuildVars(name string, bin deployment.BinaryOption) {
	b.Add("custom_bin", "true")
	b.Add("testnet_name", name)
	b.Add("org", bin.RepoOwner)
	b.Add("branch", bin.Branch)
}

func archiveURL(bin deployment.BinaryOption, binary, name string) string {
	return fmt.Sprintf("%s/%s/%s/%s-%s-x86_64-unknown-linux-musl.tar.gz",
		archiveBaseURL, bin.RepoOwner, bin.Branch, binary, name)
}
