package external

import (
	"encoding/json"
	"fmt"
	"net/rpc"

	goplugin "github.com/GoCodeAlone/go-plugin"

	"github.com/GoCodeAlone/lao-engine/pluginhost"
)

// wireInput/wireOutput mirror pluginhost.Input/Output with the `any` JSON
// payload pre-encoded to a string, so net/rpc's gob codec never has to
// encode an unregistered interface value.
type wireInput struct {
	Kind      pluginhost.IOType
	Text      string
	AudioPath string
	JSONData  string
	Tagged    []pluginhost.Tag
}

type wireOutput struct {
	Kind     pluginhost.IOType
	Text     string
	JSONData string
	Tagged   []pluginhost.Tag
}

func toWireInput(in pluginhost.Input) (wireInput, error) {
	w := wireInput{Kind: in.Kind, Text: in.Text, AudioPath: in.AudioPath, Tagged: in.Tagged}
	if in.Kind == pluginhost.TypeJSON && in.JSON != nil {
		data, err := json.Marshal(in.JSON)
		if err != nil {
			return wireInput{}, fmt.Errorf("encode json input: %w", err)
		}
		w.JSONData = string(data)
	}
	return w, nil
}

func fromWireOutput(w wireOutput) (pluginhost.Output, error) {
	out := pluginhost.Output{Kind: w.Kind, Text: w.Text, Tagged: w.Tagged}
	if w.Kind == pluginhost.TypeJSON && w.JSONData != "" {
		var v any
		if err := json.Unmarshal([]byte(w.JSONData), &v); err != nil {
			return pluginhost.Output{}, fmt.Errorf("decode json output: %w", err)
		}
		out.JSON = v
	}
	return out, nil
}

// RunnerService is the RPC interface an external plugin subprocess serves.
// Plugin binaries register a type satisfying this on the server side via
// Serve; the host only ever sees the client stub below.
type RunnerService interface {
	Run(in pluginhost.Input) (pluginhost.Output, error)
}

// rpcServer adapts a RunnerService to net/rpc's exported-method calling
// convention (single args/reply pair, error return).
type rpcServer struct {
	impl RunnerService
}

func (s *rpcServer) Run(args wireInput, reply *wireOutput) error {
	in := pluginhost.Input{Kind: args.Kind, Text: args.Text, AudioPath: args.AudioPath, Tagged: args.Tagged}
	if args.Kind == pluginhost.TypeJSON && args.JSONData != "" {
		var v any
		if err := json.Unmarshal([]byte(args.JSONData), &v); err != nil {
			return fmt.Errorf("decode json input: %w", err)
		}
		in.JSON = v
	}
	out, err := s.impl.Run(in)
	if err != nil {
		return err
	}
	wireOut, err := toWireOutput(out)
	if err != nil {
		return err
	}
	*reply = wireOut
	return nil
}

func toWireOutput(out pluginhost.Output) (wireOutput, error) {
	w := wireOutput{Kind: out.Kind, Text: out.Text, Tagged: out.Tagged}
	if out.Kind == pluginhost.TypeJSON && out.JSON != nil {
		data, err := json.Marshal(out.JSON)
		if err != nil {
			return wireOutput{}, fmt.Errorf("encode json output: %w", err)
		}
		w.JSONData = string(data)
	}
	return w, nil
}

// rpcClient is the host-side stub returned by RPCPlugin.Client.
type rpcClient struct {
	client *rpc.Client
}

// Run invokes the subprocess's Run method synchronously.
func (c *rpcClient) Run(in pluginhost.Input) (pluginhost.Output, error) {
	args, err := toWireInput(in)
	if err != nil {
		return pluginhost.Output{}, err
	}
	var reply wireOutput
	if err := c.client.Call("Plugin.Run", args, &reply); err != nil {
		return pluginhost.Output{}, fmt.Errorf("rpc call to plugin failed: %w", err)
	}
	return fromWireOutput(reply)
}

// RPCPlugin implements go-plugin's Plugin interface for the net/rpc
// transport. The host only ever uses the Client half: Server is present to
// satisfy the interface for completeness and is not invoked host-side.
type RPCPlugin struct {
	Impl RunnerService
}

// Server returns the net/rpc server object a plugin subprocess would
// register. The host process never calls this.
func (p *RPCPlugin) Server(*goplugin.MuxBroker) (any, error) {
	if p.Impl == nil {
		return nil, fmt.Errorf("external.RPCPlugin: no RunnerService implementation to serve")
	}
	return &rpcServer{impl: p.Impl}, nil
}

// Client wraps an established net/rpc connection to a plugin subprocess.
func (p *RPCPlugin) Client(_ *goplugin.MuxBroker, c *rpc.Client) (any, error) {
	return &rpcClient{client: c}, nil
}
