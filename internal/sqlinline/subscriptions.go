package sqlinline

// QSelectLatestSubscription prefers the newest active, unexpired record and
// falls back to the newest record of any status.
const QSelectLatestSubscription = `--sql 08836929-3444-467a-8e8e-2082730ccd23
select id::text, user_id, plan_tier, billing_cycle, status, start_date, end_date, payment_reference, created_at
from subscriptions
where user_id = $1::text
order by (status = 'active' and end_date > $2::timestamptz) desc, created_at desc
limit 1;
`

const QInsertSubscription = `--sql 580c02ac-2afe-4672-80a2-730df33d201e
insert into subscriptions (id, user_id, plan_tier, billing_cycle, status, start_date, end_date, payment_reference, created_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::text, $6::timestamptz, $7::timestamptz, $8::text, $9::timestamptz)
on conflict (payment_reference) do nothing
returning id::text, user_id, plan_tier, billing_cycle, status, start_date, end_date, payment_reference, created_at;
`

const QSelectSubscriptionByReference = `--sql 3e087a2a-1c08-4a22-be5b-6a0dc8675a5d
select id::text, user_id, plan_tier, billing_cycle, status, start_date, end_date, payment_reference, created_at
from subscriptions
where payment_reference = $1::text;
`

const QCancelSubscription = `--sql 9e963296-6e73-4902-81fb-557dff993c0a
update subscriptions
set status = 'cancelled'
where id = $1::uuid
  and user_id = $2::text
  and status <> 'cancelled'
returning id::text, user_id, plan_tier, billing_cycle, status, start_date, end_date, payment_reference, created_at;
`

const QSelectSubscriptionStatus = `--sql 450e2386-3348-4eba-a8a6-fc6c3bbb7c17
select status
from subscriptions
where id = $1::uuid
  and user_id = $2::text;
`

const QMarkExpiredSubscriptions = `--sql 005999fb-1707-4c1d-916b-76e4ad54f30d
update subscriptions
set status = 'expired'
where status = 'active'
  and end_date <= $1::timestamptz;
`
