package resolve

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/eventsync/internal/db"
	"github.com/sells-group/eventsync/internal/model"
)

// ErrLinkTableUnavailable reports that a reference table could not be
// loaded or was empty. It is fatal at startup.
var ErrLinkTableUnavailable = eris.New("resolve: link table unavailable")

// Default reference tables on the warehouse.
const (
	DefaultEntityTable  = "rpna.wrds_company_names"
	DefaultCompanyTable = "comp.names"
)

// Linker loads the entity/CUSIP and CUSIP/company reference tables.
type Linker struct {
	pool         db.Pool
	entityTable  string
	companyTable string
}

// NewLinker creates a Linker. Empty table names fall back to the defaults.
func NewLinker(pool db.Pool, entityTable, companyTable string) *Linker {
	if entityTable == "" {
		entityTable = DefaultEntityTable
	}
	if companyTable == "" {
		companyTable = DefaultCompanyTable
	}
	return &Linker{pool: pool, entityTable: entityTable, companyTable: companyTable}
}

// Load queries both reference tables and joins them into a LinkTable.
// A failed or empty query returns ErrLinkTableUnavailable. Two non-empty
// tables that share no CUSIP yield an empty, valid LinkTable.
func (l *Linker) Load(ctx context.Context) (*LinkTable, error) {
	log := zap.L().With(zap.String("component", "resolve.linker"))

	entities, err := l.loadEntities(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("loaded entity links", zap.String("table", l.entityTable), zap.Int("rows", len(entities)))

	companies, err := l.loadCompanies(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("loaded company links", zap.String("table", l.companyTable), zap.Int("rows", len(companies)))

	table := JoinLinks(entities, companies)
	if table.IsEmpty() {
		log.Warn("reference tables share no cusip, events will not be enriched")
	}
	log.Info("link table ready", zap.Int("links", table.Len()), zap.Int("entities", table.Entities()))
	return table, nil
}

func (l *Linker) loadEntities(ctx context.Context) ([]model.EntityCUSIP, error) {
	rows, err := l.pool.Query(ctx, EntityLinkSQL(l.entityTable))
	if err != nil {
		return nil, eris.Wrapf(ErrLinkTableUnavailable, "resolve: query %s: %v", l.entityTable, err)
	}
	defer rows.Close()

	var out []model.EntityCUSIP
	for rows.Next() {
		var e model.EntityCUSIP
		if err := rows.Scan(&e.EntityID, &e.CUSIP); err != nil {
			return nil, eris.Wrapf(ErrLinkTableUnavailable, "resolve: scan %s: %v", l.entityTable, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(ErrLinkTableUnavailable, "resolve: read %s: %v", l.entityTable, err)
	}
	if len(out) == 0 {
		return nil, eris.Wrapf(ErrLinkTableUnavailable, "resolve: %s returned no rows", l.entityTable)
	}
	return out, nil
}

func (l *Linker) loadCompanies(ctx context.Context) ([]model.CompanyName, error) {
	rows, err := l.pool.Query(ctx, CompanyLinkSQL(l.companyTable))
	if err != nil {
		return nil, eris.Wrapf(ErrLinkTableUnavailable, "resolve: query %s: %v", l.companyTable, err)
	}
	defer rows.Close()

	var out []model.CompanyName
	for rows.Next() {
		var c model.CompanyName
		var tic pgtype.Text
		if err := rows.Scan(&c.CUSIP, &c.GVKEY, &tic); err != nil {
			return nil, eris.Wrapf(ErrLinkTableUnavailable, "resolve: scan %s: %v", l.companyTable, err)
		}
		if tic.Valid {
			c.Ticker = &tic.String
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(ErrLinkTableUnavailable, "resolve: read %s: %v", l.companyTable, err)
	}
	if len(out) == 0 {
		return nil, eris.Wrapf(ErrLinkTableUnavailable, "resolve: %s returned no rows", l.companyTable)
	}
	return out, nil
}

// EntityLinkSQL selects entity/CUSIP pairs with a present, non-empty CUSIP.
func EntityLinkSQL(table string) string {
	return `SELECT rp_entity_id, cusip FROM ` + sanitizeTable(table) + `
		WHERE cusip IS NOT NULL AND cusip != ''`
}

// CompanyLinkSQL selects CUSIP/company rows with a present CUSIP and GVKEY.
func CompanyLinkSQL(table string) string {
	return `SELECT cusip, gvkey, tic FROM ` + sanitizeTable(table) + `
		WHERE cusip IS NOT NULL AND cusip != '' AND gvkey IS NOT NULL`
}

// sanitizeTable handles schema-qualified table names like "comp.names".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}
