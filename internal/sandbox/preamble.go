package sandbox

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultAllowedImports is the fixed capability allowlist tool code may
// import, configurable via ALLOWED_IMPORTS.
var DefaultAllowedImports = []string{"json", "datetime", "math", "requests"}

// resultMarker/errorMarker delimit the single line of JSON the sandboxed
// process writes to stdout (result) or stderr (structured failure) so the
// Go parent can pull the run() return value out of whatever else the tool
// code printed.
const (
	resultMarker = "__TOOLMIND_RESULT__"
	errorMarker  = "__TOOLMIND_ERROR__"
)

// buildPreamble renders the Python source run inside the sandbox: an
// import-hook enforcing allowedImports, an execute_tool() bridge talking
// length-prefixed JSON over fd 3/4, the tool's own code, and a driver that
// loads args from argsPath, calls run(**kwargs), and prints a marked JSON
// result line.
//
// The import hook is defense in depth, not the primary boundary — the
// chosen backend (Docker --network=none, or a Firecracker microVM) denies
// network and filesystem-outside-scratch access at the OS/VM layer, so a
// sandbox escape of the hook alone cannot reach anything the allowlist
// would have denied.
func buildPreamble(allowedImports []string, toolCode, argsPath, controlReqPath, controlRespPath string) (string, error) {
	if len(allowedImports) == 0 {
		allowedImports = DefaultAllowedImports
	}
	allowSet, err := json.Marshal(allowedImports)
	if err != nil {
		return "", fmt.Errorf("marshal allowed imports: %w", err)
	}

	var b strings.Builder
	b.WriteString("import sys\n")
	b.WriteString("import builtins\n")
	b.WriteString("import json as _toolmind_json\n")
	b.WriteString("import struct as _toolmind_struct\n")
	b.WriteString("import os as _toolmind_os\n\n")

	fmt.Fprintf(&b, "_ALLOWED_IMPORTS = frozenset(%s)\n", allowSet)
	fmt.Fprintf(&b, "_CONTROL_REQ_PATH = %q\n", controlReqPath)
	fmt.Fprintf(&b, "_CONTROL_RESP_PATH = %q\n", controlRespPath)
	b.WriteString(`
class _ImportGuard:
    def find_module(self, name, path=None):
        root = name.split(".", 1)[0]
        if root in _ALLOWED_IMPORTS or root == "__future__":
            return None
        raise ImportError(
            "import of %r is outside the allowed capability list %r" % (name, sorted(_ALLOWED_IMPORTS))
        )

sys.meta_path.insert(0, _ImportGuard())

_CONTROL_DEPTH = 0

def execute_tool(name_or_id, args=None):
    """Resolve and run another stored tool, bridged through the Go parent
    over a pair of named-pipe control files (the sandbox's equivalent of
    fd 3/4, since a Docker container does not inherit raw host fds). Depth
    and cycle enforcement happen on the Go side; this call blocks until the
    parent replies."""
    global _CONTROL_DEPTH
    _CONTROL_DEPTH += 1
    try:
        payload = _toolmind_json.dumps({"name_or_id": name_or_id, "args": args or {}}).encode("utf-8")
        with open(_CONTROL_REQ_PATH, "wb", buffering=0) as req_pipe:
            req_pipe.write(_toolmind_struct.pack(">I", len(payload)))
            req_pipe.write(payload)
        with open(_CONTROL_RESP_PATH, "rb", buffering=0) as resp_pipe:
            header = resp_pipe.read(4)
            if len(header) != 4:
                raise RuntimeError("execute_tool: control pipe closed")
            (n,) = _toolmind_struct.unpack(">I", header)
            body = resp_pipe.read(n)
        resp = _toolmind_json.loads(body.decode("utf-8"))
        if resp.get("error"):
            raise RuntimeError(resp["error"])
        return resp.get("value")
    finally:
        _CONTROL_DEPTH -= 1

`)

	b.WriteString("# --- tool code ---\n")
	b.WriteString(toolCode)
	b.WriteString("\n\n")

	b.WriteString("# --- driver ---\n")
	fmt.Fprintf(&b, "with open(%q, \"r\") as _toolmind_args_f:\n", argsPath)
	b.WriteString("    _toolmind_kwargs = _toolmind_json.load(_toolmind_args_f)\n")
	b.WriteString(`
try:
    _toolmind_result = run(**_toolmind_kwargs)
    sys.stdout.write("` + resultMarker + `")
    sys.stdout.write(_toolmind_json.dumps(_toolmind_result))
    sys.stdout.write("\n")
except Exception as _toolmind_exc:  # noqa: BLE001 - must report every failure to the parent
    import traceback as _toolmind_traceback
    sys.stderr.write("` + errorMarker + `")
    sys.stderr.write(_toolmind_json.dumps({
        "message": str(_toolmind_exc),
        "stack": _toolmind_traceback.format_exc(),
    }))
    sys.stderr.write("\n")
    sys.exit(1)
`)

	return b.String(), nil
}
