// Package engineclient is a small JSON-RPC-over-websocket client for the
// broadcast engine. The real wire protocol (OBS WebSocket v5 or
// equivalent) is explicitly out of scope for this system — the client
// library is "assumed to expose scene/source/transform/input
// primitives" — so Client is an interface the Host Actor programs
// against, with one concrete implementation that speaks a minimal
// newline-delimited JSON-RPC dialect over gorilla/websocket, carrying
// exactly the operations the spec names.
package engineclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kestrelrun/marathoncast/internal/idgen"
)

// Config identifies one broadcast-engine instance.
type Config struct {
	IP       string
	Port     int
	Password string
}

func (c Config) url() string {
	return fmt.Sprintf("ws://%s:%d", c.IP, c.Port)
}

// SceneItem is one item of a scene (or a group within a scene).
type SceneItem struct {
	ID         int    `json:"id"`
	SourceName string `json:"sourceName"`
	Enabled    bool   `json:"enabled"`
	Locked     bool   `json:"locked"`
}

// Transform is a scene item's position/bounds/crop.
type Transform struct {
	PositionX      float64 `json:"positionX"`
	PositionY      float64 `json:"positionY"`
	Alignment      int     `json:"alignment"`
	BoundsType     string  `json:"boundsType"`
	BoundsAlignment int    `json:"boundsAlignment"`
	BoundsWidth    float64 `json:"boundsWidth"`
	BoundsHeight   float64 `json:"boundsHeight"`
	CropLeft       int     `json:"cropLeft"`
	CropRight      int     `json:"cropRight"`
	CropTop        int     `json:"cropTop"`
	CropBottom     int     `json:"cropBottom"`
}

// Scene describes one scene's name and whether it is the current program
// scene.
type Scene struct {
	Name      string `json:"name"`
	IsProgram bool   `json:"isProgram"`
}

// Client is the broadcast-engine operation surface the Host Actor needs.
// Every operation in spec §6's list has a method here.
type Client interface {
	Close() error
	GetVersion(ctx context.Context) (string, error)

	ListScenes(ctx context.Context) ([]Scene, error)
	ListSceneItems(ctx context.Context, scene string) ([]SceneItem, error)
	ListSceneItemsInGroup(ctx context.Context, group string) ([]SceneItem, error)
	GetTransform(ctx context.Context, scene string, itemID int) (Transform, error)
	SetTransform(ctx context.Context, scene string, itemID int, t Transform) error

	CreateInput(ctx context.Context, scene, name, kind string, settings map[string]any) (int, error)
	SetInputSettings(ctx context.Context, input string, settings map[string]any) error
	SetMuted(ctx context.Context, input string, muted bool) error
	SetVolume(ctx context.Context, input string, volume float64) error
	ListInputsByKind(ctx context.Context, kind string) ([]string, error)
	RemoveInput(ctx context.Context, input string) error

	DuplicateSceneItem(ctx context.Context, scene string, itemID int) (int, error)
	SetSceneItemIndex(ctx context.Context, scene string, itemID, index int) error
	SetSceneItemEnabled(ctx context.Context, scene string, itemID int, enabled bool) error
	RemoveSceneItem(ctx context.Context, scene string, itemID int) error

	SetCurrentProgramScene(ctx context.Context, scene string) error
	SetCurrentPreviewScene(ctx context.Context, scene string) error
	GetStudioModeEnabled(ctx context.Context) (bool, error)
	SetCurrentTransition(ctx context.Context, name string) error
	TriggerTransition(ctx context.Context) error

	GetStreamStatus(ctx context.Context) (bool, error)
	StartStream(ctx context.Context) error
	StopStream(ctx context.Context) error
}

type rpcRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// wsClient is the shipped Client implementation.
type wsClient struct {
	conn *websocket.Conn

	mu      sync.Mutex
	pending map[string]chan rpcResponse
}

// Dial opens a connection to the engine with the 30s connect timeout the
// concurrency model specifies.
func Dial(ctx context.Context, cfg Config) (Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	conn, _, err := dialer.DialContext(ctx, cfg.url(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial broadcast engine %s: %w", cfg.url(), err)
	}

	if cfg.Password != "" {
		if err := conn.WriteJSON(rpcRequest{ID: idgen.New("auth"), Method: "Authenticate", Params: map[string]string{"password": cfg.Password}}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("authenticate: %w", err)
		}
	}

	c := &wsClient{conn: conn, pending: make(map[string]chan rpcResponse)}
	go c.readLoop()
	return c, nil
}

func (c *wsClient) readLoop() {
	for {
		var resp rpcResponse
		if err := c.conn.ReadJSON(&resp); err != nil {
			c.mu.Lock()
			for _, ch := range c.pending {
				close(ch)
			}
			c.pending = nil
			c.mu.Unlock()
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- resp
			close(ch)
		}
	}
}

func (c *wsClient) call(ctx context.Context, method string, params any, result any) error {
	id := idgen.New("call")
	ch := make(chan rpcResponse, 1)

	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return fmt.Errorf("call %s: connection closed", method)
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.conn.WriteJSON(rpcRequest{ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("call %s: connection closed", method)
		}
		if resp.Error != "" {
			return fmt.Errorf("call %s: %s", method, resp.Error)
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		return json.Unmarshal(resp.Result, result)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *wsClient) Close() error { return c.conn.Close() }

func (c *wsClient) GetVersion(ctx context.Context) (string, error) {
	var v string
	err := c.call(ctx, "GetVersion", nil, &v)
	return v, err
}

func (c *wsClient) ListScenes(ctx context.Context) ([]Scene, error) {
	var out []Scene
	err := c.call(ctx, "GetSceneList", nil, &out)
	return out, err
}

func (c *wsClient) ListSceneItems(ctx context.Context, scene string) ([]SceneItem, error) {
	var out []SceneItem
	err := c.call(ctx, "GetSceneItemList", map[string]string{"sceneName": scene}, &out)
	return out, err
}

func (c *wsClient) ListSceneItemsInGroup(ctx context.Context, group string) ([]SceneItem, error) {
	var out []SceneItem
	err := c.call(ctx, "GetGroupSceneItemList", map[string]string{"sceneName": group}, &out)
	return out, err
}

func (c *wsClient) GetTransform(ctx context.Context, scene string, itemID int) (Transform, error) {
	var t Transform
	err := c.call(ctx, "GetSceneItemTransform", map[string]any{"sceneName": scene, "sceneItemId": itemID}, &t)
	return t, err
}

func (c *wsClient) SetTransform(ctx context.Context, scene string, itemID int, t Transform) error {
	return c.call(ctx, "SetSceneItemTransform", map[string]any{"sceneName": scene, "sceneItemId": itemID, "transform": t}, nil)
}

func (c *wsClient) CreateInput(ctx context.Context, scene, name, kind string, settings map[string]any) (int, error) {
	var out struct {
		SceneItemID int `json:"sceneItemId"`
	}
	err := c.call(ctx, "CreateInput", map[string]any{
		"sceneName": scene, "inputName": name, "inputKind": kind, "inputSettings": settings,
	}, &out)
	return out.SceneItemID, err
}

func (c *wsClient) SetInputSettings(ctx context.Context, input string, settings map[string]any) error {
	return c.call(ctx, "SetInputSettings", map[string]any{"inputName": input, "inputSettings": settings, "overlay": true}, nil)
}

func (c *wsClient) SetMuted(ctx context.Context, input string, muted bool) error {
	return c.call(ctx, "SetInputMute", map[string]any{"inputName": input, "inputMuted": muted}, nil)
}

func (c *wsClient) SetVolume(ctx context.Context, input string, volume float64) error {
	return c.call(ctx, "SetInputVolume", map[string]any{"inputName": input, "inputVolumeMul": volume}, nil)
}

func (c *wsClient) ListInputsByKind(ctx context.Context, kind string) ([]string, error) {
	var out []string
	err := c.call(ctx, "GetInputList", map[string]string{"inputKind": kind}, &out)
	return out, err
}

func (c *wsClient) RemoveInput(ctx context.Context, input string) error {
	return c.call(ctx, "RemoveInput", map[string]string{"inputName": input}, nil)
}

func (c *wsClient) DuplicateSceneItem(ctx context.Context, scene string, itemID int) (int, error) {
	var out struct {
		SceneItemID int `json:"sceneItemId"`
	}
	err := c.call(ctx, "DuplicateSceneItem", map[string]any{"sceneName": scene, "sceneItemId": itemID}, &out)
	return out.SceneItemID, err
}

func (c *wsClient) SetSceneItemIndex(ctx context.Context, scene string, itemID, index int) error {
	return c.call(ctx, "SetSceneItemIndex", map[string]any{"sceneName": scene, "sceneItemId": itemID, "sceneItemIndex": index}, nil)
}

func (c *wsClient) SetSceneItemEnabled(ctx context.Context, scene string, itemID int, enabled bool) error {
	return c.call(ctx, "SetSceneItemEnabled", map[string]any{"sceneName": scene, "sceneItemId": itemID, "sceneItemEnabled": enabled}, nil)
}

func (c *wsClient) RemoveSceneItem(ctx context.Context, scene string, itemID int) error {
	return c.call(ctx, "RemoveSceneItem", map[string]any{"sceneName": scene, "sceneItemId": itemID}, nil)
}

func (c *wsClient) SetCurrentProgramScene(ctx context.Context, scene string) error {
	return c.call(ctx, "SetCurrentProgramScene", map[string]string{"sceneName": scene}, nil)
}

func (c *wsClient) SetCurrentPreviewScene(ctx context.Context, scene string) error {
	return c.call(ctx, "SetCurrentPreviewScene", map[string]string{"sceneName": scene}, nil)
}

func (c *wsClient) GetStudioModeEnabled(ctx context.Context) (bool, error) {
	var out struct {
		StudioModeEnabled bool `json:"studioModeEnabled"`
	}
	err := c.call(ctx, "GetStudioModeEnabled", nil, &out)
	return out.StudioModeEnabled, err
}

func (c *wsClient) SetCurrentTransition(ctx context.Context, name string) error {
	return c.call(ctx, "SetCurrentSceneTransition", map[string]string{"transitionName": name}, nil)
}

func (c *wsClient) TriggerTransition(ctx context.Context) error {
	return c.call(ctx, "TriggerStudioModeTransition", nil, nil)
}

func (c *wsClient) GetStreamStatus(ctx context.Context) (bool, error) {
	var out struct {
		OutputActive bool `json:"outputActive"`
	}
	err := c.call(ctx, "GetStreamStatus", nil, &out)
	return out.OutputActive, err
}

func (c *wsClient) StartStream(ctx context.Context) error {
	return c.call(ctx, "StartStream", nil, nil)
}

func (c *wsClient) StopStream(ctx context.Context) error {
	return c.call(ctx, "StopStream", nil, nil)
}
