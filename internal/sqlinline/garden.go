package sqlinline

const QCountGardenItems = `--sql 0c64d393-bf37-4c9c-a7d0-3b351fb98b2b
select count(*)
from garden_items
where user_id = $1::text;
`

const QListGardenItems = `--sql 2ecee78c-6c9f-4896-a0ee-4646d7e20557
select id::text, user_id, species_name, nickname, created_at
from garden_items
where user_id = $1::text
order by created_at asc;
`

// QInsertGardenItem adds an item only while the user holds fewer than $4 items.
// The item takes the lowest free slot below $4; two concurrent inserts pick the
// same slot, so the loser returns no row instead of exceeding the capacity.
const QInsertGardenItem = `--sql 4d0b7e52-96a3-4c1f-b8e2-5f7a9c31d6e8
insert into garden_items (id, user_id, species_name, nickname, slot, created_at)
select gen_random_uuid(), $1::text, $2::text, $3::text, s.slot, now()
from generate_series(0, $4::int - 1) as s(slot)
where (select count(*) from garden_items where user_id = $1::text) < $4::int
  and not exists (
      select 1 from garden_items g
      where g.user_id = $1::text and g.slot = s.slot
  )
order by s.slot
limit 1
on conflict (user_id, slot) do nothing
returning id::text, user_id, species_name, nickname, created_at;
`

const QDeleteGardenItem = `--sql d49b1991-f964-4786-9678-d94ceb2cf630
delete from garden_items
where id = $1::uuid
  and user_id = $2::text;
`
