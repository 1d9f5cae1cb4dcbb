package xugu

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/xugu-publish/xugudef/database"
	"github.com/xugu-publish/xugudef/schema"
)

const (
	defaultDriverName = "xugu"
	defaultPort       = 5138
)

type XuguDatabase struct {
	config database.Config
	db     *sql.DB
}

// ErrDriverNotRegistered is returned by NewDatabase when no database/sql
// driver is registered under the configured name.
var ErrDriverNotRegistered = errors.New("database/sql driver is not registered")

// NewDatabase opens a pool on the driver registered as config.DriverName
// ("xugu" by default). This package imports no driver: the binary has to
// link one in with a blank import that registers it under that name.
func NewDatabase(config database.Config) (database.Database, error) {
	driverName := config.DriverName
	if driverName == "" {
		driverName = defaultDriverName
	}
	if !slices.Contains(sql.Drivers(), driverName) {
		return nil, fmt.Errorf("%w: %q", ErrDriverNotRegistered, driverName)
	}
	db, err := sql.Open(driverName, xuguBuildDSN(config))
	if err != nil {
		return nil, err
	}
	return newDatabase(config, db), nil
}

func newDatabase(config database.Config, db *sql.DB) *XuguDatabase {
	return &XuguDatabase{
		config: config,
		db:     db,
	}
}

func xuguBuildDSN(config database.Config) string {
	port := config.Port
	if port == 0 {
		port = defaultPort
	}
	params := []string{
		"IP=" + config.Host,
		"DB=" + config.DbName,
		"User=" + config.User,
		"PWD=" + config.Password,
		fmt.Sprintf("Port=%d", port),
		"AUTO_COMMIT=on",
		"CHAR_SET=UTF8",
	}
	return strings.Join(params, ";")
}

func (d *XuguDatabase) DB() *sql.DB {
	return d.db
}

func (d *XuguDatabase) GetConfig() database.Config {
	return d.config
}

// GetDefaultSchema returns the schema named after the login user, which is
// where Xugu puts unqualified objects.
func (d *XuguDatabase) GetDefaultSchema() string {
	return strings.ToUpper(d.config.User)
}

func (d *XuguDatabase) Close() error {
	return d.db.Close()
}

// catalogEntry locates objects of one kind in the system views.
type catalogEntry struct {
	view       string
	nameColumn string
	validity   bool // the view has a VALID column
}

var topLevelCatalog = map[schema.ObjectKind]catalogEntry{
	schema.KindTable:       {view: "ALL_TABLES", nameColumn: "TABLE_NAME"},
	schema.KindView:        {view: "ALL_VIEWS", nameColumn: "VIEW_NAME", validity: true},
	schema.KindSequence:    {view: "ALL_SEQUENCES", nameColumn: "SEQ_NAME"},
	schema.KindSynonym:     {view: "ALL_SYNONYMS", nameColumn: "SYNO_NAME"},
	schema.KindProcedure:   {view: "ALL_PROCEDURES", nameColumn: "PROC_NAME", validity: true},
	schema.KindFunction:    {view: "ALL_PROCEDURES", nameColumn: "PROC_NAME", validity: true},
	schema.KindPackage:     {view: "ALL_PACKAGES", nameColumn: "PACK_NAME", validity: true},
	schema.KindPackageBody: {view: "ALL_PACKAGES", nameColumn: "PACK_NAME", validity: true},
	schema.KindType:        {view: "ALL_TYPES", nameColumn: "TYPE_NAME", validity: true},
	schema.KindTypeBody:    {view: "ALL_TYPES", nameColumn: "TYPE_NAME", validity: true},
	schema.KindTrigger:     {view: "ALL_TRIGGERS", nameColumn: "TRIG_NAME", validity: true},
}

func stateQuery(entry catalogEntry) string {
	valid := "1"
	if entry.validity {
		valid = "o.VALID"
	}
	return fmt.Sprintf(`SELECT %s FROM %s o JOIN ALL_SCHEMAS s ON o.SCHEMA_ID = s.SCHEMA_ID WHERE s.SCHEMA_NAME = ? AND o.%s = ?`,
		valid, entry.view, entry.nameColumn)
}

// ObjectState reads the validity of a compiled unit. A unit that is not in
// the catalog is StateUnknown.
func (d *XuguDatabase) ObjectState(ctx context.Context, session database.Session, ref database.ObjectRef) (database.ObjectState, error) {
	kind, err := schema.ParseObjectKind(ref.Type)
	if err != nil {
		return database.StateUnknown, err
	}
	entry, ok := topLevelCatalog[kind]
	if !ok {
		return database.StateUnknown, fmt.Errorf("%s objects have no state", ref.Type)
	}

	rows, err := session.QueryContext(ctx, stateQuery(entry), ref.Schema, ref.Name)
	if err != nil {
		return database.StateUnknown, err
	}
	defer rows.Close()

	if !rows.Next() {
		return database.StateUnknown, rows.Err()
	}
	var valid bool
	if err := rows.Scan(&valid); err != nil {
		return database.StateUnknown, err
	}
	if valid {
		return database.StateValid, nil
	}
	return database.StateInvalid, nil
}

// ObjectStates reads the states of several units at once.
func (d *XuguDatabase) ObjectStates(ctx context.Context, refs []database.ObjectRef) ([]database.ObjectState, error) {
	return database.ConcurrentMapFuncWithError(ctx, refs, d.config.LoadConcurrency, func(ctx context.Context, ref database.ObjectRef) (database.ObjectState, error) {
		return d.ObjectState(ctx, d.db, ref)
	})
}

// LogObjectErrors reads the compile errors the server logged for a unit.
func (d *XuguDatabase) LogObjectErrors(ctx context.Context, session database.Session, ref database.ObjectRef) ([]database.CompileError, error) {
	const query = `SELECT LINE, POSITION, TEXT FROM ALL_ERRORS WHERE SCHEMA_NAME = ? AND OBJ_NAME = ? AND OBJ_TYPE = ? ORDER BY SEQUENCE`
	rows, err := session.QueryContext(ctx, query, ref.Schema, ref.Name, ref.Type)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []database.CompileError
	for rows.Next() {
		var e database.CompileError
		if err := rows.Scan(&e.Line, &e.Position, &e.Message); err != nil {
			return nil, err
		}
		e.Message = strings.TrimSpace(e.Message)
		errs = append(errs, e)
	}
	return errs, rows.Err()
}

// holderGrants are the authorities and roles held by one user or role.
type holderGrants struct {
	authorities []schema.Authority
	roles       []string
}

// LoadAuthorities reads what every holder was granted, one query pair per
// holder, and returns it keyed by holder name.
func (d *XuguDatabase) LoadAuthorities(ctx context.Context, holders []string) (map[string][]schema.Authority, map[string][]string, error) {
	grants, err := database.ConcurrentMapFuncWithError(ctx, holders, d.config.LoadConcurrency, d.loadGrants)
	if err != nil {
		return nil, nil, err
	}
	authorities := map[string][]schema.Authority{}
	roles := map[string][]string{}
	for i, holder := range holders {
		authorities[holder] = grants[i].authorities
		roles[holder] = grants[i].roles
	}
	return authorities, roles, nil
}

func (d *XuguDatabase) loadGrants(ctx context.Context, holder string) (holderGrants, error) {
	const authorityQuery = `SELECT AUTH_SCOPE, AUTH_NAME, TARGET_SCHEMA, TARGET_NAME, SUB_TARGET FROM ALL_AUTHORITIES WHERE GRANTEE = ? ORDER BY AUTH_SCOPE, TARGET_SCHEMA, TARGET_NAME, AUTH_NAME`
	rows, err := d.db.QueryContext(ctx, authorityQuery, holder)
	if err != nil {
		return holderGrants{}, fmt.Errorf("failed to query authorities of %s: %w", holder, err)
	}
	defer rows.Close()

	var grants holderGrants
	for rows.Next() {
		var scope int
		var name string
		var targetSchema, targetName, subTarget sql.NullString
		if err := rows.Scan(&scope, &name, &targetSchema, &targetName, &subTarget); err != nil {
			return holderGrants{}, fmt.Errorf("failed to scan authority row: %w", err)
		}
		authority := schema.Authority{
			Scope:     schema.AuthorityScope(scope),
			Name:      name,
			SubTarget: subTarget.String,
			Holder:    holder,
		}
		if targetName.String != "" {
			authority.Target = schema.QualifiedName(targetSchema.String, targetName.String)
		}
		grants.authorities = append(grants.authorities, authority)
	}
	if err := rows.Err(); err != nil {
		return holderGrants{}, err
	}

	const roleQuery = `SELECT ROLE_NAME FROM ALL_ROLE_MEMBERS WHERE MEMBER_NAME = ? ORDER BY ROLE_NAME`
	roleRows, err := d.db.QueryContext(ctx, roleQuery, holder)
	if err != nil {
		return holderGrants{}, fmt.Errorf("failed to query roles of %s: %w", holder, err)
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var role string
		if err := roleRows.Scan(&role); err != nil {
			return holderGrants{}, fmt.Errorf("failed to scan role row: %w", err)
		}
		grants.roles = append(grants.roles, role)
	}
	return grants, roleRows.Err()
}

// Load re-reads obj from the catalog; it is the schema.Loader of a connected
// session. Tables, members, sequences, views, synonyms and schemas come back
// as fresh objects; holders and sources are updated in place. A nil object
// means obj no longer exists.
func (d *XuguDatabase) Load(ctx context.Context, obj schema.Object) (schema.Object, error) {
	switch obj := obj.(type) {
	case *schema.User, *schema.Role:
		return d.loadHolder(ctx, obj)
	case *schema.Source:
		state, err := d.ObjectState(ctx, d.db, obj.Ref())
		if err != nil {
			return nil, err
		}
		if state == database.StateUnknown {
			return nil, nil
		}
		obj.State = state
		return obj, nil
	case *schema.Tablespace:
		return obj, nil
	case *schema.Table:
		table, err := d.loadTable(ctx, obj)
		if err != nil || table == nil {
			return nil, err
		}
		return table, nil
	case *schema.Column, *schema.Constraint, *schema.Index, *schema.Partition:
		return d.loadMember(ctx, obj)
	case *schema.Sequence:
		return d.loadSequence(ctx, obj)
	case *schema.View:
		return d.loadView(ctx, obj)
	case *schema.Synonym:
		return d.loadSynonym(ctx, obj)
	case *schema.SchemaObject:
		return d.loadSchema(ctx, obj)
	default:
		return nil, fmt.Errorf("cannot load %s objects", obj.Kind())
	}
}

func (d *XuguDatabase) loadHolder(ctx context.Context, obj schema.Object) (schema.Object, error) {
	name := obj.Base().Name
	var count int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ALL_USERS WHERE USER_NAME = ?`, name).Scan(&count); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	authorities, roles, err := d.LoadAuthorities(ctx, []string{name})
	if err != nil {
		return nil, err
	}
	switch holder := obj.(type) {
	case *schema.User:
		holder.Authorities, holder.Roles = authorities[name], roles[name]
	case *schema.Role:
		holder.Authorities, holder.Roles = authorities[name], roles[name]
	}
	slog.Debug("Reloaded authorities", "holder", name, "authorities", len(authorities[name]), "roles", len(roles[name]))
	return obj, nil
}

// LoadSourceStates sets the current state of every persisted source before
// commands are generated. A modify command without properties on an invalid
// source then becomes its recompile statement.
func (d *XuguDatabase) LoadSourceStates(ctx context.Context, sources []*schema.Source) error {
	var persisted []*schema.Source
	for _, source := range sources {
		if source.Persisted {
			persisted = append(persisted, source)
		}
	}
	refs := make([]database.ObjectRef, len(persisted))
	for i, source := range persisted {
		refs[i] = source.Ref()
	}
	states, err := d.ObjectStates(ctx, refs)
	if err != nil {
		return err
	}
	for i, source := range persisted {
		source.State = states[i]
	}
	return nil
}
