package webapi

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const durableJS = `
(function(g) {
	class DurableObjectId {
		constructor(hex, name) {
			this._hex = hex;
			if (name !== undefined) this.name = name;
		}
		toString() { return this._hex; }
		equals(other) { return other instanceof DurableObjectId && other._hex === this._hex; }
	}

	class DurableObjectStub {
		constructor(ns, id) {
			this.id = id;
			this.name = id.name;
			this._f = new Fetcher('do', ns, id.toString());
		}
		fetch(input, init) { return this._f.fetch(input, init); }
	}

	class DurableObjectNamespace {
		constructor(name) { this._name = name; }
		idFromName(name) { return new DurableObjectId(__do_id_from_name(this._name, String(name)), String(name)); }
		newUniqueId() { return new DurableObjectId(__do_unique_id(this._name)); }
		idFromString(s) { return new DurableObjectId(__do_check_id(this._name, String(s))); }
		get(id) {
			if (!(id instanceof DurableObjectId)) throw new TypeError('get() requires a DurableObjectId');
			return new DurableObjectStub(this._name, id);
		}
		getByName(name) { return this.get(this.idFromName(name)); }
	}

	g.DurableObjectId = DurableObjectId;
	g.DurableObjectStub = DurableObjectStub;
	g.DurableObjectNamespace = DurableObjectNamespace;
})(globalThis);
`

var objectIDPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// durableObjectID derives the stable ID for a named object. The first
// half depends on namespace and name, the second half tags the namespace
// so IDs from one namespace are rejected by another.
func durableObjectID(namespace, name string) string {
	sum := sha256.Sum256([]byte(namespace + "\x00" + name))
	return hex.EncodeToString(sum[:16]) + namespaceTag(namespace)
}

// durableObjectUniqueID returns a random ID for the namespace.
func durableObjectUniqueID(namespace string) string {
	u := uuid.New()
	return hex.EncodeToString(u[:]) + namespaceTag(namespace)
}

func namespaceTag(namespace string) string {
	sum := sha256.Sum256([]byte("ns:" + namespace))
	return hex.EncodeToString(sum[:16])
}

// checkObjectID validates a serialized ID against its namespace.
func checkObjectID(namespace, id string) (string, error) {
	id = strings.ToLower(id)
	if !objectIDPattern.MatchString(id) {
		return "", fmt.Errorf("invalid Durable Object ID: must be 64 hex digits")
	}
	if id[32:] != namespaceTag(namespace) {
		return "", fmt.Errorf("Durable Object ID is not valid for namespace %q", namespace)
	}
	return id, nil
}

// durableObject returns the handler for one object. Instance reuse is the
// class's business; see core.DurableObjectClass.Shared.
func (b *Bridge) durableObject(namespace, id string) (http.Handler, error) {
	class, ok := b.bindings.DurableObjects[namespace]
	if !ok {
		return nil, fmt.Errorf("durable object namespace %q not found", namespace)
	}
	h := class(id)
	if h == nil {
		return nil, fmt.Errorf("durable object %s/%s has no handler", namespace, id)
	}
	return h, nil
}

func (b *Bridge) setupDurableObjects() error {
	if err := b.rt.RegisterFunc("__do_id_from_name", durableObjectID); err != nil {
		return fmt.Errorf("registering __do_id_from_name: %w", err)
	}
	if err := b.rt.RegisterFunc("__do_unique_id", durableObjectUniqueID); err != nil {
		return fmt.Errorf("registering __do_unique_id: %w", err)
	}
	if err := b.rt.RegisterFunc("__do_check_id", checkObjectID); err != nil {
		return fmt.Errorf("registering __do_check_id: %w", err)
	}
	return b.rt.Eval(durableJS)
}
