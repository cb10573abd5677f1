package parser

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MSBuildOutput is the structured response of `msbuild -getProperty/-getItem`
type MSBuildOutput struct {
	Properties map[string]string        `json:"Properties"`
	Items      map[string][]MSBuildItem `json:"Items"`
}

// MSBuildItem is one evaluated item; only the metadata we read is declared
type MSBuildItem struct {
	Identity string `json:"Identity"`
	FullPath string `json:"FullPath"`
}

// ParseMSBuild parses the JSON printed by msbuild for property and item queries.
func ParseMSBuild(data []byte) (*MSBuildOutput, error) {
	var out MSBuildOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse msbuild output: %w", err)
	}
	if out.Properties == nil {
		out.Properties = map[string]string{}
	}
	return &out, nil
}

// Property returns a property value with surrounding whitespace removed
func (o *MSBuildOutput) Property(name string) string {
	return strings.TrimSpace(o.Properties[name])
}

// ItemPaths returns the full paths of all items of the given type
func (o *MSBuildOutput) ItemPaths(itemType string) []string {
	var paths []string
	for _, item := range o.Items[itemType] {
		if item.FullPath != "" {
			paths = append(paths, item.FullPath)
		}
	}
	return paths
}

// SelectTargetFramework picks the framework to evaluate a project with.
// A single TargetFramework wins; otherwise the lexicographically greatest
// moniker of TargetFrameworks is used. This is plain string ordering, so
// "net9.0" ranks above "net10.0".
func SelectTargetFramework(targetFramework, targetFrameworks string) string {
	if tf := strings.TrimSpace(targetFramework); tf != "" {
		return tf
	}

	var monikers []string
	for _, m := range strings.Split(targetFrameworks, ";") {
		if m = strings.TrimSpace(m); m != "" {
			monikers = append(monikers, m)
		}
	}
	if len(monikers) == 0 {
		return ""
	}
	sort.Strings(monikers)
	return monikers[len(monikers)-1]
}
