package rpc

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/pg-sharding/dataplane/pkg/config"
	"github.com/pg-sharding/dataplane/pkg/protocol"
)

type MethodType int

const (
	Unary MethodType = iota
	ClientStreaming
	ServerStreaming
)

func (t MethodType) String() string {
	switch t {
	case Unary:
		return "UNARY"
	case ClientStreaming:
		return "CLIENT_STREAMING"
	case ServerStreaming:
		return "SERVER_STREAMING"
	default:
		return fmt.Sprintf("MethodType(%d)", int(t))
	}
}

// MethodDescriptor names a remote method. LimitPercent is the share of the
// limiter budget reserved for it, 0 when it only competes for the total.
type MethodDescriptor struct {
	Name         string
	Type         MethodType
	LimitPercent float64
}

// FullMethod is the method path gRPC expects.
func (m MethodDescriptor) FullMethod() string {
	return "/" + m.Name
}

type methodKey struct {
	req reflect.Type
	typ MethodType
}

// Registry maps request message types to the methods that accept them.
type Registry struct {
	mu      sync.RWMutex
	methods map[methodKey]MethodDescriptor
}

func NewRegistry() *Registry {
	return &Registry{
		methods: map[methodKey]MethodDescriptor{},
	}
}

func keyOf(req any, typ MethodType) methodKey {
	t := reflect.TypeOf(req)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return methodKey{req: t, typ: typ}
}

func (r *Registry) Register(req any, md MethodDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[keyOf(req, md.Type)] = md
}

// Method returns the descriptor registered for the request type and call shape.
func (r *Registry) Method(req any, typ MethodType) (MethodDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	md, ok := r.methods[keyOf(req, typ)]
	return md, ok
}

func (r *Registry) MethodName(req any, typ MethodType) (string, bool) {
	md, ok := r.Method(req, typ)
	return md.FullMethod(), ok
}

// AllMethodDescriptors returns the registered methods sorted by name.
func (r *Registry) AllMethodDescriptors() []MethodDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]MethodDescriptor, 0, len(r.methods))
	for _, md := range r.methods {
		res = append(res, md)
	}
	slices.SortFunc(res, func(a, b MethodDescriptor) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return res
}

// AllMethodsLimitPercent returns the full method paths that reserve a share of
// the limiter budget.
func (r *Registry) AllMethodsLimitPercent() map[string]float64 {
	res := map[string]float64{}
	for _, md := range r.AllMethodDescriptors() {
		if md.LimitPercent > 0 {
			res[md.FullMethod()] = md.LimitPercent
		}
	}
	return res
}

const StorageService = "storage.StorageService"

var (
	MethodRoute          = MethodDescriptor{Name: StorageService + "/Route", Type: Unary}
	MethodStreamWrite    = MethodDescriptor{Name: StorageService + "/StreamWrite", Type: ClientStreaming}
	MethodStreamSqlQuery = MethodDescriptor{Name: StorageService + "/StreamSqlQuery", Type: ServerStreaming}
)

// RegisterStorageService registers the storage node methods. Unary writes get
// the write share of the budget and unary queries the rest.
func RegisterStorageService(r *Registry) {
	writePercent := config.WriteLimitPercent()

	r.Register(&protocol.RouteRequest{}, MethodRoute)
	r.Register(&protocol.WriteRequest{}, MethodDescriptor{
		Name:         StorageService + "/Write",
		Type:         Unary,
		LimitPercent: writePercent,
	})
	r.Register(&protocol.WriteRequest{}, MethodStreamWrite)
	r.Register(&protocol.SqlQueryRequest{}, MethodDescriptor{
		Name:         StorageService + "/SqlQuery",
		Type:         Unary,
		LimitPercent: 1 - writePercent,
	})
	r.Register(&protocol.SqlQueryRequest{}, MethodStreamSqlQuery)
}

var defaultRegistry = func() *Registry {
	r := NewRegistry()
	RegisterStorageService(r)
	return r
}()

func DefaultRegistry() *Registry {
	return defaultRegistry
}
