package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/ruya/internal/core"
	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/dmitrijs2005/ruya/internal/orchestrator"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a core.Service backed by a running daemon.
type Client struct {
	conn grpc.ClientConnInterface
	// closer is set when the client owns the connection.
	closer io.Closer
}

var _ core.Service = (*Client)(nil)

// Dial connects to the daemon at address over plaintext. The control API
// is meant for a local GUI shell.
func Dial(address string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return &Client{conn: conn, closer: conn}, nil
}

// NewClient wraps an existing connection; the caller keeps ownership.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return fromStatus(c.conn.Invoke(ctx, fullMethod(method), in, out))
}

func (c *Client) Balance(ctx context.Context) (models.CreditBalance, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, methodBalance, &emptypb.Empty{}, out); err != nil {
		return models.CreditBalance{}, err
	}
	var b models.CreditBalance
	return b, fromStruct(out, &b)
}

func (c *Client) Packages(ctx context.Context) ([]core.Offer, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, methodPackages, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return fromListStruct[core.Offer](out)
}

func (c *Client) Purchase(ctx context.Context, productID string) (models.CreditBalance, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, methodPurchase, wrapperspb.String(productID), out); err != nil {
		return models.CreditBalance{}, err
	}
	var b models.CreditBalance
	return b, fromStruct(out, &b)
}

func (c *Client) Restore(ctx context.Context) (int, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.invoke(ctx, methodRestore, &emptypb.Empty{}, out); err != nil {
		return 0, err
	}
	return int(out.GetValue()), nil
}

func (c *Client) History(ctx context.Context) ([]models.DreamArtifact, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, methodHistory, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return fromListStruct[models.DreamArtifact](out)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.invoke(ctx, methodDelete, wrapperspb.String(id), new(emptypb.Empty))
}

func (c *Client) OfflineLogs(ctx context.Context, limit int) ([]models.DreamLogRecord, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, methodOfflineLogs, wrapperspb.Int64(int64(limit)), out); err != nil {
		return nil, err
	}
	return fromListStruct[models.DreamLogRecord](out)
}

func (c *Client) Interpret(ctx context.Context, prompt string) (models.Interpretation, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, methodInterpret, wrapperspb.String(prompt), out); err != nil {
		return models.Interpretation{}, err
	}
	var interp models.Interpretation
	return interp, fromStruct(out, &interp)
}

var errNoArtifact = errors.New("generate stream ended without an artifact")

// Generate forwards progress events to onProgress as they arrive.
func (c *Client) Generate(ctx context.Context, prompt string, onProgress orchestrator.ProgressFunc) (models.DreamArtifact, error) {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], fullMethod(methodGenerate))
	if err != nil {
		return models.DreamArtifact{}, fromStatus(err)
	}
	if err := stream.SendMsg(wrapperspb.String(prompt)); err != nil {
		return models.DreamArtifact{}, fromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		return models.DreamArtifact{}, fromStatus(err)
	}

	for {
		ev := new(structpb.Struct)
		err := stream.RecvMsg(ev)
		if errors.Is(err, io.EOF) {
			return models.DreamArtifact{}, errNoArtifact
		}
		if err != nil {
			return models.DreamArtifact{}, fromStatus(err)
		}

		var body struct {
			Progress *models.GenerationProgress `json:"progress"`
			Artifact *models.DreamArtifact      `json:"artifact"`
		}
		if err := fromStruct(ev, &body); err != nil {
			return models.DreamArtifact{}, fmt.Errorf("decode generate event: %w", err)
		}
		switch {
		case body.Artifact != nil:
			return *body.Artifact, nil
		case body.Progress != nil && onProgress != nil:
			onProgress(*body.Progress)
		}
	}
}
