package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, root string, rel string, imports ...string) {
	t.Helper()
	body := "package p\n\nimport (\n"
	for _, imp := range imports {
		body += "\t_ \"" + imp + "\"\n"
	}
	body += ")\n"
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func rules(violations []violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.File+" "+v.Rule)
	}
	return out
}

func TestCollectViolationsAcceptsLayeredImports(t *testing.T) {
	root := t.TempDir()
	svc := "contexts/notifications/orders-service"
	writeSource(t, root, svc+"/domain/services/a.go", "strings", "courier/"+svc+"/domain/entities")
	writeSource(t, root, svc+"/ports/ports.go", "context", "courier/"+svc+"/domain/entities", "courier/contracts/gen/events/v1")
	writeSource(t, root, svc+"/application/commands/c.go", "courier/"+svc+"/ports", "courier/"+svc+"/domain/services")
	writeSource(t, root, svc+"/adapters/postgres/r.go", "gorm.io/gorm", "courier/"+svc+"/application")
	writeSource(t, root, "internal/platform/messaging/bus.go", "courier/"+svc+"/ports")

	require.Empty(t, collectViolations(root))
}

func TestCollectViolationsFlagsEachRule(t *testing.T) {
	root := t.TempDir()
	svc := "contexts/notifications/orders-service"
	writeSource(t, root, svc+"/domain/entities/e.go", "courier/"+svc+"/ports")
	writeSource(t, root, svc+"/ports/ports.go", "github.com/google/uuid")
	writeSource(t, root, svc+"/application/queries/q.go", "courier/"+svc+"/adapters/memory")
	writeSource(t, root, svc+"/transport/http/dto.go", "courier/"+svc+"/domain/entities")
	writeSource(t, root, svc+"/module.go", "courier/contexts/notifications/billing-service/ports")
	writeSource(t, root, "internal/platform/httpserver/s.go", "courier/"+svc+"/adapters/http")
	writeSource(t, root, svc+"/domain/entities/e_test.go", "github.com/stretchr/testify/require")

	require.Equal(t, []string{
		svc + "/application/queries/q.go application import is outside explicit allowlist",
		svc + "/domain/entities/e.go domain import is outside explicit allowlist",
		svc + "/module.go cross-module imports are forbidden",
		svc + "/ports/ports.go ports import is outside explicit allowlist",
		svc + "/transport/http/dto.go transport import is outside explicit allowlist",
		"internal/platform/httpserver/s.go platform must not import context internals",
	}, rules(collectViolations(root)))
}

func TestCollectViolationsReportsUnparsableFiles(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "contexts", "a", "b", "domain", "x.go")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not go"), 0o644))

	violations := collectViolations(root)
	require.Len(t, violations, 1)
	require.Equal(t, "file must parse", violations[0].Rule)
}

func TestIsStdlib(t *testing.T) {
	require.True(t, isStdlib("net/http"))
	require.False(t, isStdlib("github.com/IBM/sarama"))
	require.False(t, isStdlib("courier/contracts"))
}
