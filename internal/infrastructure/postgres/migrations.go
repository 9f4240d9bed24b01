package postgres

import (
	"context"

	"github.com/example/opsched/internal/db"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS standing_contracts (
	tenant_id TEXT NOT NULL,
	id TEXT NOT NULL,
	customer_id TEXT NOT NULL,
	customer_kind TEXT NOT NULL,
	anchor_at TIMESTAMPTZ NOT NULL,
	timezone TEXT NOT NULL,
	recurrence TEXT NOT NULL,
	duration_min INT NOT NULL,
	effective_start TIMESTAMPTZ NOT NULL,
	effective_end TIMESTAMPTZ,
	max_ahead_days INT NOT NULL,
	auto_create BOOLEAN NOT NULL DEFAULT TRUE,
	policy_sellable_id TEXT NOT NULL DEFAULT '',
	policy_location_id TEXT NOT NULL DEFAULT '',
	policy_party_size INT NOT NULL DEFAULT 0,
	policy_notes TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'draft',
	last_generated_at TIMESTAMPTZ,
	next_planned_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS contract_exceptions (
	tenant_id TEXT NOT NULL,
	id TEXT NOT NULL,
	contract_id TEXT NOT NULL,
	action TEXT NOT NULL,
	target_key TEXT NOT NULL DEFAULT '',
	target_date DATE,
	new_start TIMESTAMPTZ,
	new_end TIMESTAMPTZ,
	new_location_id TEXT NOT NULL DEFAULT '',
	new_sellable_id TEXT NOT NULL DEFAULT '',
	pause_start TIMESTAMPTZ,
	pause_end TIMESTAMPTZ,
	reason TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, id),
	FOREIGN KEY (tenant_id, contract_id) REFERENCES standing_contracts(tenant_id, id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_exceptions_contract ON contract_exceptions(tenant_id, contract_id) WHERE active;

CREATE TABLE IF NOT EXISTS occurrences (
	tenant_id TEXT NOT NULL,
	occurrence_key TEXT NOT NULL,
	id TEXT NOT NULL,
	contract_id TEXT NOT NULL,
	planned_start TIMESTAMPTZ NOT NULL,
	planned_end TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL DEFAULT 'planned',
	order_id TEXT,
	location_id TEXT NOT NULL DEFAULT '',
	sellable_id TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	generated_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, occurrence_key),
	FOREIGN KEY (tenant_id, contract_id) REFERENCES standing_contracts(tenant_id, id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_occurrences_due ON occurrences(tenant_id, planned_start) WHERE status IN ('planned','generated');

CREATE TABLE IF NOT EXISTS fulfillment_units (
	tenant_id TEXT NOT NULL,
	id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	component_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'planned',
	planned_start TIMESTAMPTZ,
	planned_end TIMESTAMPTZ,
	actual_start TIMESTAMPTZ,
	actual_end TIMESTAMPTZ,
	location_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_units_order ON fulfillment_units(tenant_id, order_id);

CREATE TABLE IF NOT EXISTS fulfillment_dependencies (
	tenant_id TEXT NOT NULL,
	id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	predecessor_id TEXT NOT NULL,
	successor_id TEXT NOT NULL,
	dep_type TEXT NOT NULL,
	min_gap_min INT,
	max_gap_min INT,
	hard_block BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, id),
	FOREIGN KEY (tenant_id, predecessor_id) REFERENCES fulfillment_units(tenant_id, id) ON DELETE CASCADE,
	FOREIGN KEY (tenant_id, successor_id) REFERENCES fulfillment_units(tenant_id, id) ON DELETE CASCADE,
	CHECK (predecessor_id <> successor_id),
	CHECK (min_gap_min IS NULL OR max_gap_min IS NULL OR min_gap_min <= max_gap_min)
);

CREATE INDEX IF NOT EXISTS idx_dependencies_order ON fulfillment_dependencies(tenant_id, order_id);

CREATE TABLE IF NOT EXISTS assignments (
	tenant_id TEXT NOT NULL,
	id TEXT NOT NULL,
	unit_id TEXT NOT NULL,
	resource_id TEXT NOT NULL,
	window_start TIMESTAMPTZ,
	window_end TIMESTAMPTZ,
	conflict_policy TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'proposed',
	role TEXT NOT NULL DEFAULT '',
	is_primary BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, id),
	FOREIGN KEY (tenant_id, unit_id) REFERENCES fulfillment_units(tenant_id, id) ON DELETE CASCADE,
	CHECK (status NOT IN ('reserved','confirmed','in_progress') OR window_start IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_assignments_resource ON assignments(tenant_id, resource_id, status);

CREATE TABLE IF NOT EXISTS assignment_events (
	tenant_id TEXT NOT NULL,
	id TEXT NOT NULL,
	assignment_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	before_status TEXT,
	before_resource_id TEXT,
	before_window_start TIMESTAMPTZ,
	before_window_end TIMESTAMPTZ,
	before_policy TEXT,
	after_status TEXT NOT NULL,
	after_resource_id TEXT NOT NULL,
	after_window_start TIMESTAMPTZ,
	after_window_end TIMESTAMPTZ,
	after_policy TEXT NOT NULL,
	actor TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, id),
	FOREIGN KEY (tenant_id, assignment_id) REFERENCES assignments(tenant_id, id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_assignment_events_assignment ON assignment_events(tenant_id, assignment_id, occurred_at);
`

func Migrate(ctx context.Context, d *db.DB) error {
	return d.Exec(ctx, schemaSQL)
}
