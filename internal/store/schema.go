package store

// Schema creates the tables the Postgres store reads and writes. It is safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS approvable_entities (
    id            TEXT PRIMARY KEY,
    kind          TEXT NOT NULL,
    target_role   TEXT NOT NULL,
    status        TEXT NOT NULL,
    version       BIGINT NOT NULL,
    state         TEXT NOT NULL DEFAULT '',
    district      TEXT NOT NULL DEFAULT '',
    college       TEXT NOT NULL DEFAULT '',
    department    TEXT NOT NULL DEFAULT '',
    subject_id    TEXT NOT NULL,
    submitted_by  TEXT NOT NULL,
    approver_id   TEXT NOT NULL DEFAULT '',
    reason        TEXT NOT NULL DEFAULT '',
    decided_at    TIMESTAMPTZ,
    payload       JSONB NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entities_scope
    ON approvable_entities (target_role, lower(state), lower(district), lower(college));

CREATE TABLE IF NOT EXISTS opportunities (
    id           TEXT PRIMARY KEY,
    recruiter_id TEXT NOT NULL,
    title        TEXT NOT NULL DEFAULT '',
    open         BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS student_profiles (
    student_id        TEXT PRIMARY KEY,
    profile_completed BOOLEAN NOT NULL DEFAULT FALSE,
    skills            TEXT[] NOT NULL DEFAULT '{}',
    certificates      INTEGER NOT NULL DEFAULT 0,
    education_entries INTEGER NOT NULL DEFAULT 0,
    has_resume        BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS applications (
    id             TEXT PRIMARY KEY,
    student_id     TEXT NOT NULL,
    opportunity_id TEXT NOT NULL,
    recruiter_id   TEXT NOT NULL,
    status         TEXT NOT NULL,
    applied_at     TIMESTAMPTZ NOT NULL,
    interview_id   TEXT NOT NULL DEFAULT '',
    feedback       TEXT NOT NULL DEFAULT '',
    version        BIGINT NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_applications_live
    ON applications (student_id, opportunity_id)
    WHERE status NOT IN ('rejected', 'withdrawn');

CREATE TABLE IF NOT EXISTS interviews (
    id             TEXT PRIMARY KEY,
    application_id TEXT NOT NULL REFERENCES applications (id),
    scheduled_at   TIMESTAMPTZ NOT NULL,
    status         TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_interviews_active
    ON interviews (application_id)
    WHERE status <> 'cancelled';
`
