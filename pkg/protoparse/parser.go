// Package protoparse extracts remote method signatures from protobuf
// interface definitions.
package protoparse

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/emicklei/proto"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ravi-parthasarathy/drafter/pkg/pipeline"
)

// DefaultCacheSize is the number of parsed sources kept by New.
const DefaultCacheSize = 128

// Parser turns .proto source text into RemoteMethods, one per rpc of every
// service. Results are cached by source digest. Parser is safe for
// concurrent use and satisfies pipeline.InterfaceParser.
type Parser struct {
	cache  *lru.Cache[string, []pipeline.RemoteMethod]
	logger *slog.Logger
}

// New creates a Parser caching up to size parsed sources. A size below one
// selects DefaultCacheSize.
func New(size int, logger *slog.Logger) (*Parser, error) {
	if size < 1 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, []pipeline.RemoteMethod](size)
	if err != nil {
		return nil, fmt.Errorf("parse cache: %w", err)
	}
	return &Parser{cache: cache, logger: logger}, nil
}

// Parse returns the methods declared in source, in declaration order.
// Returned methods carry no identifiers. The result shares field slices
// with the cache and must be treated as read-only.
func (p *Parser) Parse(source string) ([]pipeline.RemoteMethod, error) {
	sum := sha256.Sum256([]byte(source))
	key := hex.EncodeToString(sum[:])
	if methods, ok := p.cache.Get(key); ok {
		p.logger.Debug("interface cache hit", "digest", key[:12], "methods", len(methods))
		return slices.Clone(methods), nil
	}

	methods, err := Parse(source)
	if err != nil {
		return nil, err
	}
	p.cache.Add(key, methods)
	p.logger.Debug("interface parsed", "digest", key[:12], "methods", len(methods))
	return slices.Clone(methods), nil
}

// Len reports how many parsed sources are cached.
func (p *Parser) Len() int { return p.cache.Len() }

// Parse is the uncached form of Parser.Parse.
func Parse(source string) ([]pipeline.RemoteMethod, error) {
	def, err := proto.NewParser(strings.NewReader(source)).Parse()
	if err != nil {
		return nil, fmt.Errorf("parse interface: %w", err)
	}

	reg := &registry{messages: make(map[string]*proto.Message)}
	reg.collect("", def.Elements)

	var methods []pipeline.RemoteMethod
	var walkErr error
	proto.Walk(def, proto.WithService(func(s *proto.Service) {
		for _, el := range s.Elements {
			rpc, ok := el.(*proto.RPC)
			if !ok || walkErr != nil {
				continue
			}
			m, err := reg.method(rpc)
			if err != nil {
				walkErr = fmt.Errorf("service %s: %w", s.Name, err)
				continue
			}
			methods = append(methods, m)
		}
	}))
	if walkErr != nil {
		return nil, walkErr
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("parse interface: no service methods declared")
	}
	return methods, nil
}

// ─── message registry ─────────────────────────────────────────────────────────

type registry struct {
	pkg      string
	messages map[string]*proto.Message // qualified name without package → message
}

func (r *registry) collect(prefix string, elems []proto.Visitee) {
	for _, el := range elems {
		switch v := el.(type) {
		case *proto.Package:
			r.pkg = v.Name
		case *proto.Message:
			name := v.Name
			if prefix != "" {
				name = prefix + "." + v.Name
			}
			r.messages[name] = v
			r.collect(name, v.Elements)
		}
	}
}

func (r *registry) lookup(name string) (*proto.Message, bool) {
	name = strings.TrimPrefix(name, ".")
	if m, ok := r.messages[name]; ok {
		return m, true
	}
	if r.pkg != "" {
		if m, ok := r.messages[strings.TrimPrefix(name, r.pkg+".")]; ok {
			return m, true
		}
	}
	return nil, false
}

func (r *registry) method(rpc *proto.RPC) (pipeline.RemoteMethod, error) {
	req, err := r.messageType(rpc.RequestType, rpc.StreamsRequest)
	if err != nil {
		return pipeline.RemoteMethod{}, fmt.Errorf("rpc %s request: %w", rpc.Name, err)
	}
	resp, err := r.messageType(rpc.ReturnsType, rpc.StreamsReturns)
	if err != nil {
		return pipeline.RemoteMethod{}, fmt.Errorf("rpc %s response: %w", rpc.Name, err)
	}
	return pipeline.RemoteMethod{Name: rpc.Name, RequestType: req, ResponseType: resp}, nil
}

// messageType describes a message structurally. The type keeps the name
// used in the rpc declaration.
func (r *registry) messageType(name string, streamed bool) (pipeline.MessageType, error) {
	msg, ok := r.lookup(name)
	if !ok {
		return pipeline.MessageType{}, fmt.Errorf("unknown message type %q", name)
	}
	mt := pipeline.MessageType{Name: name, Streamed: streamed}
	for _, el := range msg.Elements {
		switch f := el.(type) {
		case *proto.NormalField:
			mt.Fields = append(mt.Fields, pipeline.Field{
				Name: f.Name, Type: f.Type, ID: f.Sequence, Rule: rule(f),
			})
		case *proto.MapField:
			mt.Fields = append(mt.Fields, pipeline.Field{
				Name: f.Name, Type: f.Type, ID: f.Sequence, KeyType: f.KeyType,
			})
		case *proto.Oneof:
			members := make([]string, 0, len(f.Elements))
			for _, oel := range f.Elements {
				of, ok := oel.(*proto.OneOfField)
				if !ok {
					continue
				}
				members = append(members, of.Name)
				mt.Fields = append(mt.Fields, pipeline.Field{Name: of.Name, Type: of.Type, ID: of.Sequence})
			}
			if mt.Oneofs == nil {
				mt.Oneofs = make(map[string][]string)
			}
			mt.Oneofs[f.Name] = members
		}
	}
	slices.SortFunc(mt.Fields, func(a, b pipeline.Field) int { return cmp.Compare(a.ID, b.ID) })
	return mt, nil
}

func rule(f *proto.NormalField) string {
	switch {
	case f.Repeated:
		return "repeated"
	case f.Required:
		return "required"
	case f.Optional:
		return "optional"
	}
	return ""
}
