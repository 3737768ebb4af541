package webapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const d1JS = `
(function(g) {
	function rowsToObjects(res) {
		return res.rows.map(function(row) {
			var o = {};
			for (var i = 0; i < res.columns.length; i++) o[res.columns[i]] = row[i];
			return o;
		});
	}
	function normalize(v) {
		if (v === undefined) throw new TypeError('D1_TYPE_ERROR: Type undefined is not supported');
		if (typeof v === 'boolean') return v ? 1 : 0;
		return v;
	}

	class D1PreparedStatement {
		constructor(db, sql, params) {
			this._db = db;
			this._sql = sql;
			this._params = params;
		}
		bind() {
			return new D1PreparedStatement(this._db, this._sql, Array.prototype.map.call(arguments, normalize));
		}
		_exec() {
			return JSON.parse(__d1_exec(this._db, this._sql, JSON.stringify(this._params)));
		}
		all() {
			var self = this;
			return __asPromise(function() {
				var res = self._exec();
				return { success: true, results: rowsToObjects(res), meta: res.meta };
			});
		}
		first(column) {
			var self = this;
			return __asPromise(function() {
				var rows = rowsToObjects(self._exec());
				if (rows.length === 0) return null;
				if (column === undefined) return rows[0];
				if (!(column in rows[0])) throw new Error('D1_COLUMN_NOTFOUND: Column not found (' + column + ')');
				return rows[0][column];
			});
		}
		run() {
			var self = this;
			return __asPromise(function() {
				var res = self._exec();
				return { success: true, results: rowsToObjects(res), meta: res.meta };
			});
		}
		raw(opts) {
			var self = this;
			return __asPromise(function() {
				var res = self._exec();
				return opts && opts.columnNames ? [res.columns].concat(res.rows) : res.rows;
			});
		}
	}

	class D1Database {
		constructor(name) { this._name = name; }
		prepare(sql) { return new D1PreparedStatement(this._name, String(sql), []); }
		batch(stmts) {
			return __asPromise(function() {
				return stmts.map(function(s) {
					var res = s._exec();
					return { success: true, results: rowsToObjects(res), meta: res.meta };
				});
			});
		}
		exec(sql) {
			var name = this._name;
			return __asPromise(function() {
				var start = Date.now(), count = 0;
				String(sql).split('\n').forEach(function(line) {
					line = line.trim();
					if (line === '') return;
					__d1_exec(name, line, '[]');
					count++;
				});
				return { count: count, duration: Date.now() - start };
			});
		}
	}

	g.D1Database = D1Database;
	g.D1PreparedStatement = D1PreparedStatement;
})(globalThis);
`

// decodeParams turns JSON bind parameters into driver values, keeping
// integers as int64.
func decodeParams(paramsJSON string) ([]any, error) {
	if paramsJSON == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(paramsJSON)))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid bind parameters: %w", err)
	}
	for i, v := range raw {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if iv, err := n.Int64(); err == nil {
			raw[i] = iv
		} else if fv, err := n.Float64(); err == nil {
			raw[i] = fv
		}
	}
	return raw, nil
}

// openD1 opens every configured database.
func (b *Bridge) openD1() error {
	for name, id := range b.bindings.D1 {
		bridge, err := OpenD1Database(b.bindings.D1DataDir, id)
		if err != nil {
			return fmt.Errorf("D1 binding %q: %w", name, err)
		}
		b.d1[name] = bridge
	}
	return nil
}

func (b *Bridge) setupD1() error {
	if err := b.openD1(); err != nil {
		return err
	}
	if err := b.rt.RegisterFunc("__d1_exec", func(name, sqlStr, paramsJSON string) (string, error) {
		store, ok := b.d1[name]
		if !ok {
			return "", fmt.Errorf("D1 binding %q not found", name)
		}
		params, err := decodeParams(paramsJSON)
		if err != nil {
			return "", err
		}
		res, err := store.Exec(sqlStr, params)
		if err != nil {
			return "", err
		}
		data, err := json.Marshal(res)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}); err != nil {
		return fmt.Errorf("registering __d1_exec: %w", err)
	}
	return b.rt.Eval(d1JS)
}
