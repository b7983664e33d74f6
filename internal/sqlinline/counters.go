package sqlinline

const QSelectLatestCounter = `--sql e3fee709-b0aa-4c81-b729-92701847c03f
select subject_id, day_key, used_count, bonus_count, clicks_today, updated_at
from quota_counters
where subject_id = $1::text
order by day_key desc
limit 1;
`

const QSelectCounterForDay = `--sql 58db5db3-7aff-4798-8eb6-66b5dc6605c2
select subject_id, day_key, used_count, bonus_count, clicks_today, updated_at
from quota_counters
where subject_id = $1::text
  and day_key = $2::text;
`

// QRolloverCounter creates the row for $2 unless a row for that day or a later
// one exists, then returns the row for $2 or later. When a concurrent session
// inserted $2 after this statement's snapshot, neither branch sees it and a
// zero row for $2 is returned instead of an earlier day.
const QRolloverCounter = `--sql 3eb95986-9ee1-44bc-810e-f9e53bc874de
with ins as (
    insert into quota_counters (subject_id, day_key, used_count, bonus_count, clicks_today, updated_at)
    select $1::text, $2::text, 0, 0, 0, now()
    where not exists (
        select 1 from quota_counters
        where subject_id = $1::text and day_key >= $2::text
    )
    on conflict (subject_id, day_key) do nothing
    returning subject_id, day_key, used_count, bonus_count, clicks_today, updated_at
),
latest as (
    select subject_id, day_key, used_count, bonus_count, clicks_today, updated_at
    from quota_counters
    where subject_id = $1::text
      and day_key >= $2::text
    order by day_key desc
    limit 1
)
select subject_id, day_key, used_count, bonus_count, clicks_today, updated_at
from (
    select 0 as pri, * from ins
    union all
    select 1 as pri, * from latest
    union all
    select 2 as pri, $1::text, $2::text, 0, 0, 0, now()
) candidates
order by pri
limit 1;
`

const QIncrementUsedCounter = `--sql c526a512-087d-4345-ad5c-edcbe19b6523
insert into quota_counters (subject_id, day_key, used_count, bonus_count, clicks_today, updated_at)
values ($1::text, $2::text, 1, 0, 0, now())
on conflict (subject_id, day_key) do update set
    used_count = quota_counters.used_count + 1,
    updated_at = now()
returning subject_id, day_key, used_count, bonus_count, clicks_today, updated_at;
`

// QIncrementBonusCounter returns no row when clicks_today already reached $3.
const QIncrementBonusCounter = `--sql 33165ffb-065c-4e49-bac0-9b16cc85f3ad
insert into quota_counters (subject_id, day_key, used_count, bonus_count, clicks_today, updated_at)
select $1::text, $2::text, 0, 1, 1, now()
where $3::int > 0
on conflict (subject_id, day_key) do update set
    bonus_count = quota_counters.bonus_count + 1,
    clicks_today = quota_counters.clicks_today + 1,
    updated_at = now()
where quota_counters.clicks_today < $3::int
returning subject_id, day_key, used_count, bonus_count, clicks_today, updated_at;
`

// QDeleteCountersBefore drops day rows older than $1; only the latest rows are
// ever read.
const QDeleteCountersBefore = `--sql 7c1f7d0e-5b7a-4c55-9a0e-2f3d8b4c6a91
delete from quota_counters
where day_key < $1::text;
`
