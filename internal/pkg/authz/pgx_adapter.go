package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/persist"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/lo"
)

// TableName is the rule table, see the migrations directory.
const TableName = "otpgate_casbin_rules"

const ruleFields = 6

var (
	// ErrRuleTooLong indicates a rule with more than six fields.
	ErrRuleTooLong = errors.New("authz: rule length exceeds field count")
	// ErrEmptyPtype indicates a filtered delete without a policy type.
	ErrEmptyPtype = errors.New("authz: ptype is empty")
)

// Commander is the subset of pgxpool.Pool the adapter needs.
type Commander interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgxAdapter persists casbin rules in postgres.
type PgxAdapter struct {
	ctx context.Context
	db  Commander
}

var (
	_ persist.Adapter      = (*PgxAdapter)(nil)
	_ persist.BatchAdapter = (*PgxAdapter)(nil)
)

// NewPgxAdapter binds the adapter to ctx, which bounds every statement it runs.
func NewPgxAdapter(ctx context.Context, db Commander) *PgxAdapter {
	return &PgxAdapter{ctx: ctx, db: db}
}

var (
	columns      = strings.Join(lo.Times(ruleFields, func(i int) string { return "v" + strconv.Itoa(i) }), ", ")
	placeholders = strings.Join(lo.Times(ruleFields, func(i int) string { return "$" + strconv.Itoa(i+2) }), ", ")
	matchAll     = strings.Join(lo.Times(ruleFields, func(i int) string {
		return "v" + strconv.Itoa(i) + " = $" + strconv.Itoa(i+2)
	}), " AND ")

	sqlSelectRules = "SELECT ptype, " + columns + " FROM " + TableName + " ORDER BY id"
	sqlInsertRule  = "INSERT INTO " + TableName + " (ptype, " + columns + ") VALUES ($1, " + placeholders + ") " +
		"ON CONFLICT (ptype, " + columns + ") DO NOTHING"
	sqlDeleteRule  = "DELETE FROM " + TableName + " WHERE ptype = $1 AND " + matchAll
	sqlDeleteRules = "DELETE FROM " + TableName
)

func (a *PgxAdapter) LoadPolicy(m model.Model) error {
	rows, err := a.db.Query(a.ctx, sqlSelectRules)
	if err != nil {
		return fmt.Errorf("authz: load policy: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ptype string
		vals := make([]sql.NullString, ruleFields)
		dest := append([]any{&ptype}, lo.Map(vals, func(_ sql.NullString, i int) any { return &vals[i] })...)
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("authz: scan rule: %w", err)
		}

		line := append([]string{ptype}, trimTrailingEmpty(lo.Map(vals, func(v sql.NullString, _ int) string { return v.String }))...)
		if err := persist.LoadPolicyArray(line, m); err != nil {
			return err
		}
	}

	return rows.Err()
}

// SavePolicy replaces every stored rule with the rules in m.
func (a *PgxAdapter) SavePolicy(m model.Model) (err error) {
	tx, err := a.db.Begin(a.ctx)
	if err != nil {
		return fmt.Errorf("authz: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(a.ctx)
		}
	}()

	if _, err = tx.Exec(a.ctx, sqlDeleteRules); err != nil {
		return fmt.Errorf("authz: clear rules: %w", err)
	}

	for _, sec := range []string{"p", "g"} {
		for ptype, ast := range m[sec] {
			for _, rule := range ast.Policy {
				args, rerr := ruleArgs(ptype, rule)
				if rerr != nil {
					return rerr
				}
				if _, err = tx.Exec(a.ctx, sqlInsertRule, args...); err != nil {
					return fmt.Errorf("authz: insert rule: %w", err)
				}
			}
		}
	}

	return tx.Commit(a.ctx)
}

func (a *PgxAdapter) AddPolicy(_ string, ptype string, rule []string) error {
	args, err := ruleArgs(ptype, rule)
	if err != nil {
		return err
	}
	if _, err := a.db.Exec(a.ctx, sqlInsertRule, args...); err != nil {
		return fmt.Errorf("authz: insert rule: %w", err)
	}
	return nil
}

func (a *PgxAdapter) RemovePolicy(_ string, ptype string, rule []string) error {
	args, err := ruleArgs(ptype, rule)
	if err != nil {
		return err
	}
	if _, err := a.db.Exec(a.ctx, sqlDeleteRule, args...); err != nil {
		return fmt.Errorf("authz: delete rule: %w", err)
	}
	return nil
}

func (a *PgxAdapter) AddPolicies(sec string, ptype string, rules [][]string) error {
	for _, rule := range rules {
		if err := a.AddPolicy(sec, ptype, rule); err != nil {
			return err
		}
	}
	return nil
}

func (a *PgxAdapter) RemovePolicies(sec string, ptype string, rules [][]string) error {
	for _, rule := range rules {
		if err := a.RemovePolicy(sec, ptype, rule); err != nil {
			return err
		}
	}
	return nil
}

func (a *PgxAdapter) RemoveFilteredPolicy(_ string, ptype string, fieldIndex int, fieldValues ...string) error {
	if ptype == "" {
		return ErrEmptyPtype
	}
	if fieldIndex+len(fieldValues) > ruleFields {
		return ErrRuleTooLong
	}

	query := sqlDeleteRules + " WHERE ptype = $1"
	args := []any{ptype}
	for i, v := range fieldValues {
		if v == "" {
			continue
		}
		args = append(args, v)
		query += " AND v" + strconv.Itoa(fieldIndex+i) + " = $" + strconv.Itoa(len(args))
	}

	if _, err := a.db.Exec(a.ctx, query, args...); err != nil {
		return fmt.Errorf("authz: delete filtered rules: %w", err)
	}
	return nil
}

func ruleArgs(ptype string, rule []string) ([]any, error) {
	if len(rule) > ruleFields {
		return nil, ErrRuleTooLong
	}
	padded := make([]string, ruleFields)
	copy(padded, rule)
	return append([]any{ptype}, lo.ToAnySlice(padded)...), nil
}

func trimTrailingEmpty(rule []string) []string {
	last := len(rule) - 1
	for last >= 0 && rule[last] == "" {
		last--
	}
	return rule[:last+1]
}
