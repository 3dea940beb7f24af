package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Branch pointers. Exactly one default branch per workflow,
			-- enforced by a partial unique index.
			CREATE TABLE branches (
				id UUID PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				is_default BOOLEAN NOT NULL DEFAULT FALSE,
				is_protected BOOLEAN NOT NULL DEFAULT FALSE,
				base_version_id UUID,
				head_version_id UUID,
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'merged', 'archived')),
				created_by VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_branches_workflow_id ON branches(workflow_id);
			CREATE UNIQUE INDEX idx_branches_one_default
				ON branches(workflow_id) WHERE is_default;
			CREATE UNIQUE INDEX idx_branches_active_name
				ON branches(workflow_id, name) WHERE status = 'active';

			-- Immutable version snapshots. Append-only: nothing updates
			-- spec and nothing deletes rows, except tags which may grow.
			CREATE TABLE versions (
				id UUID PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				branch_id UUID NOT NULL REFERENCES branches(id),
				version VARCHAR(50) NOT NULL,
				version_number INT NOT NULL,
				spec JSONB NOT NULL,
				change_summary TEXT NOT NULL DEFAULT '',
				change_type VARCHAR(20) NOT NULL CHECK (change_type IN ('major', 'minor', 'patch')),
				parent_version_id UUID,
				created_by VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				tags JSONB NOT NULL DEFAULT '[]',
				is_release BOOLEAN NOT NULL DEFAULT FALSE,
				UNIQUE (workflow_id, version_number)
			);

			CREATE INDEX idx_versions_workflow_id ON versions(workflow_id);
			CREATE INDEX idx_versions_branch_id ON versions(branch_id);
			CREATE INDEX idx_versions_parent ON versions(parent_version_id);
		`,
	}
}
