package sqlinline

// QEnsureSchema creates the tables used by the service when they are missing.
const QEnsureSchema = `--sql eb3f1c9a-1534-4ede-adcb-3c0664ae14e2
create table if not exists quota_counters (
    subject_id   text        not null,
    day_key      text        not null,
    used_count   int         not null default 0 check (used_count >= 0),
    bonus_count  int         not null default 0 check (bonus_count >= 0),
    clicks_today int         not null default 0 check (clicks_today >= 0),
    updated_at   timestamptz not null default now(),
    primary key (subject_id, day_key)
);

create table if not exists subscriptions (
    id                uuid        primary key,
    user_id           text        not null,
    plan_tier         text        not null check (plan_tier in ('basic', 'premium')),
    billing_cycle     text        not null check (billing_cycle in ('monthly', 'yearly')),
    status            text        not null check (status in ('active', 'cancelled', 'expired')),
    start_date        timestamptz not null,
    end_date          timestamptz not null,
    payment_reference text        not null unique,
    created_at        timestamptz not null default now()
);
create index if not exists subscriptions_user_created_idx on subscriptions (user_id, created_at desc);

create table if not exists garden_items (
    id           uuid        primary key,
    user_id      text        not null,
    species_name text        not null,
    nickname     text        not null default '',
    slot         int,
    created_at   timestamptz not null default now()
);
alter table garden_items add column if not exists slot int;
create index if not exists garden_items_user_idx on garden_items (user_id);
create unique index if not exists garden_items_user_slot_idx on garden_items (user_id, slot);

create table if not exists usage_events (
    id          uuid        primary key,
    subject_key text        not null,
    request_id  text,
    event_type  text        not null,
    success     boolean     not null,
    latency_ms  int         not null,
    created_at  timestamptz not null default now(),
    properties  jsonb       not null default '{}'::jsonb
);

create table if not exists provider_credentials (
    provider             text        primary key,
    api_key              text        not null,
    fingerprint          text        not null,
    previous_fingerprint text        not null default '',
    set_by               text        not null default '',
    rotated_at           timestamptz not null default now()
);
`
