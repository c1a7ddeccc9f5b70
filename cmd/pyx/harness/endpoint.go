package harness

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
)

// Endpoint is the entry point of a project: pyx_endpoints.py.
type Endpoint interface {
	// GetWeightPaths returns weight files of the model, as written in the project.
	GetWeightPaths(ctx context.Context) (map[string]string, error)

	// Predict runs inference for files in inputDir, writing results into outputDir.
	//
	// # Returns
	//
	// - bool: what predict returns, as truthiness.
	//
	// - error: predict raised, or the endpoint is broken.
	Predict(ctx context.Context, req PredictRequest) (bool, error)

	Close() error
}

type PredictRequest struct {
	InputDir    string            `json:"input_dir"`
	OutputDir   string            `json:"output_dir"`
	WeightPaths map[string]string `json:"weight_paths"`
	Device      string            `json:"device"`
}

const (
	DefaultPython = "python3"

	// EnvPython is the environment variable to choose the python interpreter.
	EnvPython = "PYX_PYTHON"
)

//go:embed shim.py
var shim string

type request struct {
	Call string `json:"call"`
	*PredictRequest
}

type response struct {
	Ready     bool            `json:"ready"`
	Result    json.RawMessage `json:"result"`
	OK        bool            `json:"ok"`
	Error     string          `json:"error"`
	Traceback string          `json:"traceback"`
}

type python struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *json.Decoder

	mu sync.Mutex
}

// Starter starts an Endpoint for the project at root.
type Starter func(ctx context.Context, interpreter string, root string, stderr io.Writer) (Endpoint, error)

var _ Starter = StartPython

// StartPython spawns the python interpreter serving pyx_endpoints.py in root.
//
// Outputs of the endpoints are written to stderr.
// Returned Endpoint should be closed.
func StartPython(ctx context.Context, interpreter string, root string, stderr io.Writer) (Endpoint, error) {
	if interpreter == "" {
		interpreter = DefaultPython
	}
	cmd := exec.CommandContext(ctx, interpreter, "-u", "-c", shim)
	cmd.Dir = root
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: cannot start %s: %w", perrors.ErrHarness, interpreter, err)
	}

	p := &python{
		cmd:    cmd,
		stdin:  stdin,
		stdout: json.NewDecoder(bufio.NewReader(stdout)),
	}

	res := response{}
	if err := p.stdout.Decode(&res); err != nil || !res.Ready {
		p.Close()
		if err == nil {
			err = endpointError(res)
		}
		return nil, fmt.Errorf("%w: cannot load pyx_endpoints.py in %s: %w", perrors.ErrHarness, root, err)
	}
	return p, nil
}

func (p *python) call(ctx context.Context, req request) (response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return response{}, err
	}

	buf, err := json.Marshal(req)
	if err != nil {
		return response{}, err
	}
	if _, err := p.stdin.Write(append(buf, '\n')); err != nil {
		return response{}, fmt.Errorf("%w: endpoint is not running: %w", perrors.ErrHarness, err)
	}
	res := response{}
	if err := p.stdout.Decode(&res); err != nil {
		return response{}, fmt.Errorf("%w: endpoint is broken: %w", perrors.ErrHarness, err)
	}
	if res.Error != "" {
		return res, endpointError(res)
	}
	return res, nil
}

func (p *python) GetWeightPaths(ctx context.Context) (map[string]string, error) {
	res, err := p.call(ctx, request{Call: "get_weight_paths"})
	if err != nil {
		return nil, err
	}
	paths := map[string]string{}
	if err := json.Unmarshal(res.Result, &paths); err != nil {
		return nil, fmt.Errorf(
			"%w: get_weight_paths should return dict of str: %w", perrors.ErrHarness, err,
		)
	}
	return paths, nil
}

func (p *python) Predict(ctx context.Context, req PredictRequest) (bool, error) {
	res, err := p.call(ctx, request{Call: "predict", PredictRequest: &req})
	if err != nil {
		return false, err
	}
	return res.OK, nil
}

func (p *python) Close() error {
	p.stdin.Close()
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// the shim exits 1 when it cannot import endpoints. It is reported already.
		return nil
	}
	return err
}

func endpointError(res response) error {
	return perrors.NewCuiError(
		res.Error,
		perrors.WithKind(perrors.ErrHarness),
		perrors.WithVerbose(res.Traceback),
	)
}
