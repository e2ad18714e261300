package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE triggers (
				id UUID PRIMARY KEY,
				organization_id UUID NOT NULL,
				workflow_id UUID,
				name VARCHAR(255) NOT NULL,
				enabled BOOLEAN NOT NULL DEFAULT true,
				schedule_type VARCHAR(20) NOT NULL CHECK (schedule_type IN ('cron', 'one_time')),
				cron_expression VARCHAR(255),
				actions JSONB NOT NULL DEFAULT '[]',
				next_execution TIMESTAMP WITH TIME ZONE,
				last_executed TIMESTAMP WITH TIME ZONE,
				locked_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_triggers_due ON triggers(next_execution) WHERE enabled;
			CREATE INDEX idx_triggers_organization ON triggers(organization_id);

			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				organization_id UUID,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(20) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed')),
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE TABLE stages (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL DEFAULT '',
				position INT NOT NULL DEFAULT 0,
				status VARCHAR(20) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed')),
				completed_at TIMESTAMP WITH TIME ZONE,
				completed_by UUID
			);

			CREATE INDEX idx_stages_workflow ON stages(workflow_id, position);

			CREATE TABLE steps (
				id UUID PRIMARY KEY,
				stage_id UUID NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL DEFAULT '',
				position INT NOT NULL DEFAULT 0,
				status VARCHAR(20) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed')),
				completed_at TIMESTAMP WITH TIME ZONE,
				completed_by UUID,
				require_all_children_complete BOOLEAN
			);

			CREATE INDEX idx_steps_stage ON steps(stage_id, position);

			CREATE TABLE tasks (
				id UUID PRIMARY KEY,
				step_id UUID NOT NULL REFERENCES steps(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL DEFAULT '',
				position INT NOT NULL DEFAULT 0,
				status VARCHAR(20) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed')),
				completed_at TIMESTAMP WITH TIME ZONE,
				completed_by UUID
			);

			CREATE INDEX idx_tasks_step ON tasks(step_id, position);

			CREATE TABLE subtasks (
				id UUID PRIMARY KEY,
				task_id UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(20) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed')),
				completed_at TIMESTAMP WITH TIME ZONE,
				completed_by UUID
			);

			CREATE INDEX idx_subtasks_task ON subtasks(task_id);

			CREATE TABLE checklist_items (
				id UUID PRIMARY KEY,
				task_id UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
				text TEXT NOT NULL DEFAULT '',
				checked BOOLEAN NOT NULL DEFAULT false,
				checked_at TIMESTAMP WITH TIME ZONE,
				checked_by UUID
			);

			CREATE INDEX idx_checklist_items_task ON checklist_items(task_id);

			CREATE TABLE assignments (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL,
				assigned_to UUID NOT NULL,
				current_stage_id UUID,
				current_step_id UUID,
				status VARCHAR(20) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'completed')),
				completed_stages INT NOT NULL DEFAULT 0,
				total_stages INT NOT NULL DEFAULT 0,
				progress INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_assignments_workflow ON assignments(workflow_id);
			CREATE INDEX idx_assignments_assigned_to ON assignments(assigned_to);

			CREATE TABLE notifications (
				id UUID PRIMARY KEY,
				user_id UUID NOT NULL,
				title VARCHAR(255) NOT NULL,
				message TEXT NOT NULL DEFAULT '',
				type VARCHAR(50) NOT NULL DEFAULT '',
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_notifications_user ON notifications(user_id);
		`,
	}
}
