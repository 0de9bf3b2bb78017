package mailbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hupe1980/tickmesh/core"
	"github.com/hupe1980/tickmesh/internal/util"
	"github.com/hupe1980/tickmesh/logging"
	"github.com/hupe1980/tickmesh/registry"
	"github.com/hupe1980/tickmesh/sizeguard"
)

const (
	cyclesDir    = "cycles"
	tickPrefix   = "tik"
	memoryFile   = "memory.md"
	dirPerm      = 0o755
	filePerm     = 0o644
	chunkDivider = "\n\n"
)

// textExtensions lists the file types picked up by Gather.
var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".json": true,
}

// Options configures a Router.
type Options struct {
	// Limit is the size guard limit applied to every write. Zero keeps sizeguard.Limit.
	Limit int
	// Logger receives routing diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Router reads and writes agent mailboxes below a single agents directory.
type Router struct {
	dir    string
	reg    *registry.Registry
	limit  int
	logger logging.Logger
}

// New returns a router rooted at dir. Gather only considers agents known to reg.
func New(dir string, reg *registry.Registry, optFns ...func(o *Options)) *Router {
	opts := Options{
		Limit:  sizeguard.Limit,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Router{
		dir:    dir,
		reg:    reg,
		limit:  opts.Limit,
		logger: logging.Component(opts.Logger, "mailbox"),
	}
}

// Dir returns the agents directory.
func (r *Router) Dir() string { return r.dir }

// AgentDir returns the root of one agent's subtree.
func (r *Router) AgentDir(agent string) string { return filepath.Join(r.dir, agent) }

// TickDir returns the directory holding the agent's messages for tick.
func (r *Router) TickDir(agent string, dir core.Direction, tick int) string {
	return filepath.Join(r.dir, agent, string(dir), tickPrefix+strconv.Itoa(tick))
}

// Limit returns the size guard limit applied to every write.
func (r *Router) Limit() int { return r.limit }

// CyclePath returns the location of the agent's cycle record for tick.
func (r *Router) CyclePath(agent string, tick int) string {
	return filepath.Join(r.dir, agent, cyclesDir, strconv.Itoa(tick)+".json")
}

// WriteOutbox stores a message produced by agent at tick.
func (r *Router) WriteOutbox(agent string, tick int, filename, content string, opts ...sizeguard.Option) (core.Message, error) {
	return r.write(core.Message{Agent: agent, Tick: tick, Direction: core.Outbox, Filename: filename, Content: content}, opts...)
}

// WriteInbox delivers a message to agent for tick.
func (r *Router) WriteInbox(agent string, tick int, filename, content string, opts ...sizeguard.Option) (core.Message, error) {
	return r.write(core.Message{Agent: agent, Tick: tick, Direction: core.Inbox, Filename: filename, Content: content}, opts...)
}

func (r *Router) write(msg core.Message, opts ...sizeguard.Option) (core.Message, error) {
	if err := r.checkAddress(msg.Agent, msg.Tick); err != nil {
		return core.Message{}, err
	}
	if !msg.Direction.Valid() {
		return core.Message{}, fmt.Errorf("mailbox: invalid direction %q", msg.Direction)
	}
	if !util.ValidName(msg.Filename) {
		return core.Message{}, fmt.Errorf("mailbox: invalid filename %q", msg.Filename)
	}
	guard := append([]sizeguard.Option{sizeguard.WithLimit(r.limit)}, opts...)
	if err := sizeguard.Enforce(msg.Content, guard...); err != nil {
		return core.Message{}, fmt.Errorf("mailbox: %s: %w", msg.Provenance(), err)
	}
	dir := r.TickDir(msg.Agent, msg.Direction, msg.Tick)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return core.Message{}, fmt.Errorf("mailbox: create %s: %w", dir, err)
	}
	if err := util.WriteFileAtomic(filepath.Join(dir, msg.Filename), []byte(msg.Content), filePerm); err != nil {
		return core.Message{}, fmt.Errorf("mailbox: %s: %w", msg.Provenance(), err)
	}
	r.logger.Debug("message written", "agent", msg.Agent, "tick", msg.Tick, "direction", string(msg.Direction), "file", msg.Filename, "chars", len(msg.Content))
	return msg, nil
}

// RemoveOutbox deletes a message agent produced at tick. Removing a message
// that does not exist is not an error.
func (r *Router) RemoveOutbox(agent string, tick int, filename string) error {
	if err := r.checkAddress(agent, tick); err != nil {
		return err
	}
	if !util.ValidName(filename) {
		return fmt.Errorf("mailbox: invalid filename %q", filename)
	}
	path := filepath.Join(r.TickDir(agent, core.Outbox, tick), filename)
	err := os.Remove(path)
	switch {
	case err == nil:
		r.logger.Debug("message removed", "agent", agent, "tick", tick, "file", filename)
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("mailbox: remove %s/%s@%d: %w", agent, filename, tick, err)
	}
}

// ReadInbox returns the messages delivered to agent for tick, ordered by
// filename. A missing inbox yields an empty slice.
func (r *Router) ReadInbox(agent string, tick int) ([]core.Message, error) {
	if err := r.checkAddress(agent, tick); err != nil {
		return nil, err
	}
	return r.readTick(agent, core.Inbox, tick)
}

// ReadOutbox returns the messages agent produced at tick, ordered by filename.
func (r *Router) ReadOutbox(agent string, tick int) ([]core.Message, error) {
	if err := r.checkAddress(agent, tick); err != nil {
		return nil, err
	}
	return r.readTick(agent, core.Outbox, tick)
}

// Gather collects the outbox messages of every registered agent for exactly
// tick, ordered by agent id and then filename. Only text-like files are
// considered. When nothing is found the error wraps core.ErrMissingArtifact.
func (r *Router) Gather(tick int) ([]core.Message, error) {
	if !core.ValidTick(tick) {
		return nil, fmt.Errorf("mailbox: negative tick %d", tick)
	}
	var msgs []core.Message
	for _, id := range r.reg.IDs() {
		batch, err := r.ReadOutbox(id, tick)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, batch...)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("mailbox: no outputs at tick %d: %w", tick, core.ErrMissingArtifact)
	}
	return msgs, nil
}

// GatherOutputs is the merged text form of Gather. Each message becomes a
// chunk headed by "# <agent>/<filename>"; chunks are separated by a blank line.
func (r *Router) GatherOutputs(tick int) (string, error) {
	msgs, err := r.Gather(tick)
	if err != nil {
		return "", err
	}
	return Merge(msgs), nil
}

// Merge renders messages in the gathered text format, preserving their order.
func Merge(msgs []core.Message) string {
	chunks := make([]string, 0, len(msgs))
	for _, m := range msgs {
		chunks = append(chunks, "# "+m.Provenance()+"\n"+m.Content)
	}
	return strings.Join(chunks, chunkDivider)
}

// WriteCycle persists rec as the agent's cycle record for rec.Tick,
// replacing any earlier record for the same tick.
func (r *Router) WriteCycle(rec core.CycleRecord) error {
	if err := r.checkAddress(rec.Agent, rec.Tick); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("mailbox: encode cycle %s@%d: %w", rec.Agent, rec.Tick, err)
	}
	path := r.CyclePath(rec.Agent, rec.Tick)
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("mailbox: create %s: %w", filepath.Dir(path), err)
	}
	if err := util.WriteFileAtomic(path, append(data, '\n'), filePerm); err != nil {
		return fmt.Errorf("mailbox: cycle %s@%d: %w", rec.Agent, rec.Tick, err)
	}
	return nil
}

// ReadCycle loads the agent's cycle record for tick. A missing record wraps
// fs.ErrNotExist.
func (r *Router) ReadCycle(agent string, tick int) (core.CycleRecord, error) {
	if err := r.checkAddress(agent, tick); err != nil {
		return core.CycleRecord{}, err
	}
	data, err := os.ReadFile(r.CyclePath(agent, tick))
	if err != nil {
		return core.CycleRecord{}, fmt.Errorf("mailbox: cycle %s@%d: %w", agent, tick, err)
	}
	var rec core.CycleRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return core.CycleRecord{}, fmt.Errorf("mailbox: decode cycle %s@%d: %w", agent, tick, err)
	}
	if rec.Agent == "" {
		rec.Agent = agent
	}
	if rec.Tick == 0 {
		rec.Tick = tick
	}
	return rec, nil
}

// Scaffold creates inbox, outbox and cycles directories plus an empty
// memory.md for each agent. Existing files are left untouched. It returns
// the paths that were created.
func (r *Router) Scaffold(ids []string) ([]string, error) {
	var created []string
	for _, id := range ids {
		if !util.ValidName(id) {
			return created, fmt.Errorf("mailbox: invalid agent id %q", id)
		}
		for _, sub := range []string{string(core.Inbox), string(core.Outbox), cyclesDir} {
			dir := filepath.Join(r.dir, id, sub)
			if _, err := os.Stat(dir); err == nil {
				continue
			}
			if err := os.MkdirAll(dir, dirPerm); err != nil {
				return created, fmt.Errorf("mailbox: scaffold %s: %w", dir, err)
			}
			created = append(created, dir)
		}
		mem := filepath.Join(r.dir, id, memoryFile)
		f, err := os.OpenFile(mem, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
		switch {
		case err == nil:
			f.Close()
			created = append(created, mem)
		case errors.Is(err, fs.ErrExist):
		default:
			return created, fmt.Errorf("mailbox: scaffold %s: %w", mem, err)
		}
	}
	if len(created) > 0 {
		r.logger.Info("agent tree scaffolded", "agents", len(ids), "created", len(created))
	}
	return created, nil
}

func (r *Router) readTick(agent string, dir core.Direction, tick int) ([]core.Message, error) {
	path := r.TickDir(agent, dir, tick)
	entries, err := os.ReadDir(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mailbox: list %s: %w", path, err)
	}
	// os.ReadDir returns entries sorted by filename.
	var msgs []core.Message
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !textExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(path, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("mailbox: read %s/%s: %w", agent, e.Name(), err)
		}
		msgs = append(msgs, core.Message{
			Agent:     agent,
			Tick:      tick,
			Direction: dir,
			Filename:  e.Name(),
			Content:   string(data),
		})
	}
	return msgs, nil
}

func (r *Router) checkAddress(agent string, tick int) error {
	if !util.ValidName(agent) {
		return fmt.Errorf("mailbox: invalid agent id %q", agent)
	}
	if !core.ValidTick(tick) {
		return fmt.Errorf("mailbox: negative tick %d", tick)
	}
	return nil
}
