// Package project resolves source files to their owning project and the
// project's build properties.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"dtp/internal/domain"
	"dtp/internal/parser"
	"dtp/internal/ui"
)

// Querier evaluates msbuild properties and items of a project
type Querier interface {
	Query(ctx context.Context, projectFile string, properties, items []string, globals map[string]string) (*parser.MSBuildOutput, error)
}

var (
	frameworkProperties = []string{"TargetFramework", "TargetFrameworks"}
	projectProperties   = []string{"TargetPath", "MSBuildProjectDirectory", "IsTestProject"}
	projectItems        = []string{"Compile"}
)

// Resolver maps source files to ProjectInfo. Results are cached for the
// lifetime of the Resolver; Clear drops them.
type Resolver struct {
	toolchain Querier
	notifier  *ui.Notifier
	log       *slog.Logger

	mu        sync.Mutex
	projects  map[string]domain.ProjectInfo // project file -> info
	fileIndex map[string]string             // source file -> project file

	// one metadata query per project at a time
	flights singleflight.Group
}

// NewResolver creates a Resolver
func NewResolver(toolchain Querier, notifier *ui.Notifier, log *slog.Logger) *Resolver {
	return &Resolver{
		toolchain: toolchain,
		notifier:  notifier,
		log:       log,
		projects:  make(map[string]domain.ProjectInfo),
		fileIndex: make(map[string]string),
	}
}

// ProjectFile returns the project manifest owning sourcePath. A manifest
// path resolves to itself.
func (r *Resolver) ProjectFile(sourcePath string) (string, error) {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", sourcePath, err)
	}
	if IsManifest(abs) {
		return abs, nil
	}

	r.mu.Lock()
	projectFile, ok := r.fileIndex[abs]
	r.mu.Unlock()
	if ok {
		return projectFile, nil
	}
	return FindManifest(filepath.Dir(abs))
}

// Resolve returns the ProjectInfo of the project owning sourcePath.
//
// ErrProjectNotFound is returned when no manifest encloses the file. When
// the toolchain fails, a best-effort ProjectInfo is returned together with
// the *toolchain.Error; such results are not cached.
func (r *Resolver) Resolve(ctx context.Context, sourcePath string) (domain.ProjectInfo, error) {
	projectFile, err := r.ProjectFile(sourcePath)
	if err != nil {
		return domain.ProjectInfo{}, err
	}
	return r.resolveProject(ctx, projectFile)
}

// Refresh drops the cached ProjectInfo of the project owning sourcePath and
// resolves it again, e.g. after a build changed its output.
func (r *Resolver) Refresh(ctx context.Context, sourcePath string) (domain.ProjectInfo, error) {
	projectFile, err := r.ProjectFile(sourcePath)
	if err != nil {
		return domain.ProjectInfo{}, err
	}
	r.mu.Lock()
	delete(r.projects, projectFile)
	r.mu.Unlock()
	return r.resolveProject(ctx, projectFile)
}

// Clear drops every cached ProjectInfo and file mapping
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects = make(map[string]domain.ProjectInfo)
	r.fileIndex = make(map[string]string)
}

func (r *Resolver) cached(projectFile string) (domain.ProjectInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.projects[projectFile]
	return info, ok
}

func (r *Resolver) resolveProject(ctx context.Context, projectFile string) (domain.ProjectInfo, error) {
	if info, ok := r.cached(projectFile); ok {
		return info, nil
	}

	v, err, _ := r.flights.Do(projectFile, func() (interface{}, error) {
		// a flight that finished just before this one started already filled the cache
		if info, ok := r.cached(projectFile); ok {
			return info, nil
		}

		info, files, err := r.query(ctx, projectFile)
		if err != nil && canceled(ctx, err) {
			r.log.Debug("project resolution canceled", "project", projectFile)
			return info, err
		}
		if err != nil {
			r.log.Error("failed to resolve project properties", "project", projectFile, "error", err)
			r.notifier.Error("metadata:"+projectFile, "Could not read project properties of %s: %v", filepath.Base(projectFile), err)
			return info, err
		}

		r.mu.Lock()
		r.projects[projectFile] = info
		for _, f := range files {
			r.fileIndex[filepath.Clean(f)] = projectFile
		}
		r.mu.Unlock()

		r.log.Debug("resolved project", "project", projectFile, "framework", info.TargetFramework,
			"output", info.OutputPath, "test", info.IsTestProject, "files", len(files))
		return info, nil
	})
	return v.(domain.ProjectInfo), err
}

// canceled reports whether err comes from the caller giving up rather
// than from the project itself
func canceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// query runs the two evaluation passes: first to select the target
// framework, then pinned to it for the output, directory, test flag and
// compiled files.
func (r *Resolver) query(ctx context.Context, projectFile string) (domain.ProjectInfo, []string, error) {
	info := domain.ProjectInfo{
		ProjectFile: projectFile,
		ProjectDir:  filepath.Dir(projectFile),
	}

	fw, err := r.toolchain.Query(ctx, projectFile, frameworkProperties, nil, nil)
	if err != nil {
		return info, nil, err
	}
	info.TargetFramework = parser.SelectTargetFramework(fw.Property("TargetFramework"), fw.Property("TargetFrameworks"))

	var globals map[string]string
	if info.TargetFramework != "" {
		globals = map[string]string{"TargetFramework": info.TargetFramework}
	}
	props, err := r.toolchain.Query(ctx, projectFile, projectProperties, projectItems, globals)
	if err != nil {
		return info, nil, err
	}

	info.OutputPath = props.Property("TargetPath")
	if dir := props.Property("MSBuildProjectDirectory"); dir != "" {
		info.ProjectDir = dir
	}
	info.IsTestProject = strings.EqualFold(props.Property("IsTestProject"), "true")
	return info, props.ItemPaths("Compile"), nil
}
